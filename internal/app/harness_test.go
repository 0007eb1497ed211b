package app

import (
	"net/http"
	"testing"
)

func TestRecordedCartPactIsHonouredByTheCartsProvider(t *testing.T) {
	given, when, then := NewHarnessStage(t)

	given.
		the_frontend_cart_scenarios()

	when.
		each_scenario_is_run_through_the_admin_api().and().
		the_pact_is_verified_against_the_carts_provider()

	then.
		every_scenario_passed().and().
		a_pact_with_every_scenario_is_written().and().
		verification_is_successful()
}

func TestContractDriftFailsVerification(t *testing.T) {
	given, when, then := NewHarnessStage(t)

	given.
		a_pact_expecting_an_unknown_cart_to_be_not_found()

	when.
		the_pact_is_verified_against_the_carts_provider()

	then.
		verification_fails_at_("$.status")
}

func TestConstraintMatches(t *testing.T) {
	given, when, then := NewHarnessStage(t)

	given.
		the_add_item_interaction_is_declared().and().
		a_quantity_constraint_of_(2)

	when.
		the_frontend_adds_an_item_with_quantity_(2).and().
		the_mock_provider_is_verified()

	then.
		the_responses_are_(http.StatusCreated).and().
		mock_verification_is_successful()
}

func TestConstraintDoesntMatch(t *testing.T) {
	given, when, then := NewHarnessStage(t)

	given.
		the_add_item_interaction_is_declared().and().
		a_quantity_constraint_of_(2)

	when.
		the_frontend_adds_an_item_with_quantity_(3).and().
		the_mock_provider_is_verified()

	then.
		the_responses_are_(http.StatusInternalServerError).and().
		mock_verification_is_not_successful()
}

func TestModifiedStatusCodeOnSecondAttempt(t *testing.T) {
	given, when, then := NewHarnessStage(t)

	given.
		the_add_item_interaction_is_declared().and().
		a_modified_response_status_of_(http.StatusServiceUnavailable, 2)

	when.
		n_items_are_added(3).and().
		the_mock_provider_is_verified()

	then.
		the_responses_are_(http.StatusCreated, http.StatusServiceUnavailable, http.StatusCreated).and().
		mock_verification_is_successful()
}

func TestConcurrentRequestsAreAllRecorded(t *testing.T) {
	given, when, then := NewHarnessStage(t)

	given.
		the_add_item_interaction_is_declared()

	when.
		n_items_are_added_concurrently(10).and().
		the_mock_provider_waits_for_(10).and().
		the_mock_provider_is_verified()

	then.
		all_n_responses_are_(10, http.StatusCreated).and().
		mock_verification_is_successful()
}
