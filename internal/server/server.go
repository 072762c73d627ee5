package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tsogoo/chimege-transcribe/internal/jobstore"
	"github.com/tsogoo/chimege-transcribe/internal/notify"
	"github.com/tsogoo/chimege-transcribe/internal/pipeline"
	"github.com/tsogoo/chimege-transcribe/internal/worker"
)

type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// JobRunner executes one job end to end. Satisfied by *pipeline.Runner.
type JobRunner interface {
	Run(ctx context.Context, job pipeline.Job)
}

// Server is the HTTP surface: job submission, status queries, health,
// metrics and live status websockets.
type Server struct {
	config   Config
	store    jobstore.Store
	pool     *worker.Pool
	runner   JobRunner
	hub      *notify.Hub
	upgrader websocket.Upgrader

	// submitMu makes the duplicate check and the accepted write one atomic
	// step, so concurrent submissions of the same id cannot both pass.
	submitMu sync.Mutex

	httpServer *http.Server
}

type processRequest struct {
	JobID       string `json:"job_id" binding:"required"`
	AudioURL    string `json:"audio_url" binding:"required"`
	CallbackURL string `json:"callback_url" binding:"required"`
}

func New(config Config, store jobstore.Store, pool *worker.Pool, runner JobRunner, hub *notify.Hub) *Server {
	return &Server{
		config: config,
		store:  store,
		pool:   pool,
		runner: runner,
		hub:    hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/process", s.handleProcess)
	router.GET("/status/:job_id", s.handleStatus)
	router.GET("/ws/status/:job_id", s.handleStatusSocket)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}

	logrus.Infof("listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleProcess accepts a job and queues it. The job id is caller-supplied;
// an id whose previous run is still in flight is rejected, while a terminal
// (or unknown) id may be resubmitted and starts a fresh run.
func (s *Server) handleProcess(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submitMu.Lock()
	current := s.store.GetStatus(c.Request.Context(), req.JobID)
	if current != jobstore.StatusUnknown && !current.Terminal() {
		s.submitMu.Unlock()
		c.JSON(http.StatusConflict, gin.H{
			"error":  "job already in progress",
			"job_id": req.JobID,
			"status": string(current),
		})
		return
	}
	err := s.store.SetStatus(c.Request.Context(), req.JobID, jobstore.StatusAccepted)
	s.submitMu.Unlock()
	if err != nil {
		logrus.WithField("job_id", req.JobID).Errorf("status write failed: %v", err)
	}

	job := pipeline.Job{
		ID:             req.JobID,
		AudioSourceURL: req.AudioURL,
		CallbackURL:    req.CallbackURL,
	}
	err = s.pool.Submit(func() {
		s.runner.Run(context.Background(), job)
	})
	if err != nil {
		// Queue full: mark terminal so the caller may resubmit later.
		if serr := s.store.SetStatus(c.Request.Context(), req.JobID, jobstore.StatusFailed); serr != nil {
			logrus.WithField("job_id", req.JobID).Errorf("status write failed: %v", serr)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue full, retry later"})
		return
	}

	logrus.WithField("job_id", req.JobID).Info("job accepted")
	c.JSON(http.StatusOK, gin.H{
		"job_id": req.JobID,
		"status": "processing",
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	jobID := c.Param("job_id")
	status := s.store.GetStatus(c.Request.Context(), jobID)
	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"status": string(status),
	})
}

// handleStatusSocket upgrades to a websocket, sends the current status once
// and then streams every transition until the client goes away.
func (s *Server) handleStatusSocket(c *gin.Context) {
	jobID := c.Param("job_id")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithField("job_id", jobID).Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(gin.H{
		"job_id": jobID,
		"status": string(s.store.GetStatus(c.Request.Context(), jobID)),
	}); err != nil {
		return
	}

	s.hub.Subscribe(jobID, conn)
	defer s.hub.Unsubscribe(jobID, conn)

	// Read loop exists only to notice the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"queue_depth": s.pool.Depth(),
		"workers":     s.pool.Workers(),
	})
}
