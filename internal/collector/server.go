// Package collector is the receiving side of telemetry uplink.
// Response bodies are `{"response": message}` for every endpoint.
package collector

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/juju/errors"
	"github.com/temoto/thermopost/log2"
	tele_api "github.com/temoto/thermopost/tele"
)

const (
	MsgDataReceived    = "Data received"
	MsgPong            = "pong"
	MsgErrorLogged     = "Error logged"
	MsgInvalidJSON     = "Invalid JSON"
	MsgUnknownEndpoint = "Unknown endpoint"

	bodyMax = 64 << 10

	keyBody = "collector/body"
)

type Server struct {
	Log    *log2.Log
	Memory *Memory
	Now    func() time.Time

	engine *gin.Engine
}

func NewServer(log *log2.Log, memory *Memory) *Server {
	self := &Server{
		Log:    log,
		Memory: memory,
		Now:    time.Now,
		engine: gin.New(),
	}
	self.engine.Use(self.logRequest, gin.Recovery())
	self.engine.GET("/health", self.health)
	api := self.engine.Group("", self.parseBody)
	api.POST(tele_api.EndpointTemperature, self.temperature)
	api.POST(tele_api.EndpointPing, self.ping)
	api.POST(tele_api.EndpointError, self.errorReport)
	self.engine.NoRoute(self.parseBody, func(c *gin.Context) {
		respond(c, http.StatusNotFound, MsgUnknownEndpoint)
	})
	return self
}

func (self *Server) Handler() http.Handler { return self.engine }

// Run serves until ctx is done, then shuts down gracefully.
func (self *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           self.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errch := make(chan error, 1)
	go func() { errch <- srv.ListenAndServe() }()
	self.Log.Infof("listening on %s", listen)

	select {
	case err := <-errch:
		return errors.Annotatef(err, "collector listen=%s", listen)
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return errors.Annotate(err, "collector shutdown")
	}
	return nil
}

func respond(c *gin.Context, code int, msg string) {
	c.JSON(code, tele_api.Ack{Response: msg})
}

func (self *Server) logRequest(c *gin.Context) {
	start := time.Now()
	c.Next()
	self.Log.Debugf("%s %s status=%d duration=%v client=%s",
		c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
}

// parseBody applies to any POST: empty body is accepted,
// anything else must be valid JSON regardless of path.
func (self *Server) parseBody(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		return
	}
	b, err := io.ReadAll(io.LimitReader(c.Request.Body, bodyMax))
	if err != nil {
		self.Log.Errorf("read body path=%s err=%v", c.Request.URL.Path, err)
		c.Abort()
		respond(c, http.StatusBadRequest, MsgInvalidJSON)
		return
	}
	self.Log.Debugf("raw body path=%s body=%s", c.Request.URL.Path, b)
	if len(b) != 0 && !json.Valid(b) {
		c.Abort()
		respond(c, http.StatusBadRequest, MsgInvalidJSON)
		return
	}
	c.Set(keyBody, b)
}

func body(c *gin.Context) []byte {
	if v, ok := c.Get(keyBody); ok {
		return v.([]byte)
	}
	return nil
}

func (self *Server) temperature(c *gin.Context) {
	e := Entry{Received: self.Now(), Endpoint: tele_api.EndpointTemperature}
	var t tele_api.Temperature
	if b := body(c); len(b) != 0 && json.Unmarshal(b, &t) == nil {
		e.Temperature = &t
		self.Log.Infof("data temperature=%.2f timestamp=%d", t.Temperature, t.Timestamp)
	} else {
		self.Log.Infof("data without reading body=%s", b)
	}
	self.Memory.Add(e)
	respond(c, http.StatusOK, MsgDataReceived)
}

func (self *Server) ping(c *gin.Context) {
	self.Log.Infof("ping")
	self.Memory.Add(Entry{Received: self.Now(), Endpoint: tele_api.EndpointPing})
	respond(c, http.StatusOK, MsgPong)
}

func (self *Server) errorReport(c *gin.Context) {
	e := Entry{Received: self.Now(), Endpoint: tele_api.EndpointError}
	var r tele_api.ErrorReport
	if b := body(c); len(b) != 0 && json.Unmarshal(b, &r) == nil {
		e.Error = r.Error
	}
	self.Log.Errorf("device reported: %s", e.Error)
	self.Memory.Add(e)
	respond(c, http.StatusOK, MsgErrorLogged)
}

type Health struct {
	Response string            `json:"response"`
	Total    map[string]uint64 `json:"total"`
	Last     *Entry            `json:"last,omitempty"`
}

func (self *Server) health(c *gin.Context) {
	h := Health{Response: "ok", Total: self.Memory.Total()}
	if recent := self.Memory.Recent(tele_api.EndpointTemperature); len(recent) != 0 {
		h.Last = &recent[len(recent)-1]
	}
	c.JSON(http.StatusOK, h)
}
