package recorder

import (
	"io"
	"net/http"
	"strconv"

	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/httpresponse"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// AdminPrefix is where the mock provider serves its own API. Consumer tests running
// in another process use it to declare interactions and to verify them.
const AdminPrefix = "/_pact"

type interactionStatus struct {
	Description  string `json:"description"`
	RequestCount int    `json:"request_count"`
}

func (m *MockProvider) routes() {
	admin := m.echo.Group(AdminPrefix)
	admin.GET("/ready", m.readinessHandler)
	admin.GET("/interactions", m.interactionsGetHandler)
	admin.POST("/interactions", m.interactionsPostHandler)
	admin.DELETE("/interactions", m.interactionsDeleteHandler)
	admin.POST("/interactions/constraints", m.interactionsConstraintsHandler)
	admin.POST("/interactions/modifiers", m.interactionsModifiersHandler)
	admin.GET("/interactions/wait", m.interactionsWaitHandler)
	admin.GET("/interactions/verification", m.verificationHandler)
	admin.POST("/pact", m.pactHandler)

	m.echo.Any("/*", m.handle)
}

func (m *MockProvider) readinessHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (m *MockProvider) interactionsGetHandler(c echo.Context) error {
	statuses := []interactionStatus{}
	for _, i := range m.interactions.All() {
		i.mu.RLock()
		statuses = append(statuses, interactionStatus{Description: i.Description, RequestCount: i.RequestCount})
		i.mu.RUnlock()
	}
	return c.JSON(http.StatusOK, statuses)
}

func (m *MockProvider) interactionsPostHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to read interaction. %s", err.Error())
	}

	var i contract.Interaction
	if err := i.UnmarshalJSON(data); err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to load interaction. %s", err.Error())
	}
	if err := i.Validate(); err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "invalid interaction. %s", err.Error())
	}

	m.mu.Lock()
	m.store(i)
	m.mu.Unlock()
	return c.NoContent(http.StatusOK)
}

func (m *MockProvider) interactionsDeleteHandler(c echo.Context) error {
	log.Info("deleting interactions")
	m.reset()
	return c.NoContent(http.StatusOK)
}

func (m *MockProvider) interactionsConstraintsHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to read constraint. %s", err.Error())
	}

	constraint, err := loadConstraint(data)
	if err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to load constraint. %s", err.Error())
	}

	if err := m.AddConstraint(constraint); err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "%s", err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (m *MockProvider) interactionsModifiersHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to read modifier. %s", err.Error())
	}

	modifier, err := loadModifier(data)
	if err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to load modifier. %s", err.Error())
	}

	if err := m.AddModifier(modifier); err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "%s", err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (m *MockProvider) interactionsWaitHandler(c echo.Context) error {
	count, err := strconv.Atoi(c.QueryParam("count"))
	if err != nil {
		count = 1
	}

	if waitFor := c.QueryParam("interaction"); waitFor != "" {
		if _, ok := m.interactions.Load(waitFor); !ok {
			return httpresponse.JSON(c, http.StatusBadRequest, "cannot wait for interaction '%s', interaction not found.", waitFor)
		}
		if err := m.WaitForInteraction(waitFor, count); err != nil {
			return httpresponse.JSON(c, http.StatusRequestTimeout, "%s", err.Error())
		}
		return c.NoContent(http.StatusOK)
	}

	if err := m.WaitForAll(); err != nil {
		return httpresponse.JSON(c, http.StatusRequestTimeout, "%s", err.Error())
	}
	return c.NoContent(http.StatusOK)
}

// verificationHandler completes the declared interactions like Verify does after a test.
func (m *MockProvider) verificationHandler(c echo.Context) error {
	if err := m.validatePending(); err != nil {
		m.reset()
		return httpresponse.JSON(c, http.StatusBadRequest, "%s", err.Error())
	}
	if err := m.complete(nil); err != nil {
		return httpresponse.JSON(c, http.StatusInternalServerError, "%s", err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (m *MockProvider) pactHandler(c echo.Context) error {
	path, err := m.WritePact()
	if err != nil {
		return httpresponse.JSON(c, http.StatusInternalServerError, "unable to write pact. %s", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"path": path})
}
