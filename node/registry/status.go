package registry

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andydunstall/glomers/node/status"
)

type Status struct {
	registry *Registry
}

func NewStatus(registry *Registry) *Status {
	return &Status{
		registry: registry,
	}
}

func (s *Status) Register(group *gin.RouterGroup) {
	group.GET("/summary", s.summaryRoute)
	group.GET("/nodes", s.listNodesRoute)
	group.GET("/nodes/:id", s.getNodeRoute)
}

func (s *Status) summaryRoute(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.Summary())
}

func (s *Status) listNodesRoute(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.Nodes())
}

func (s *Status) getNodeRoute(c *gin.Context) {
	id := c.Param("id")
	node, ok := s.registry.Node(id)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, node)
}

var _ status.Handler = &Status{}
