package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/abelzeko/flood-bot/internal/usecases"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServer exposes the station state to dashboards and scrapers.
type HTTPServer struct {
	addr    string
	useCase *usecases.StationUseCase
	engine  *gin.Engine
}

// NewHTTPServer constructs the server with its routes
func NewHTTPServer(addr string, useCase *usecases.StationUseCase) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &HTTPServer{addr: addr, useCase: useCase, engine: engine}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mostly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *HTTPServer) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/readings", s.handleReadings)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

type stateResponse struct {
	HeightCM    float64   `json:"height_cm"`
	FlowRateLPM float64   `json:"flow_rate_lpm"`
	Status      string    `json:"status"`
	StatusRank  int       `json:"status_rank"`
	ReadAt      time.Time `json:"read_at"`
}

type assessmentResponse struct {
	IntensityMMPerHour  float64  `json:"intensity_mm_per_hour"`
	DurationHours       float64  `json:"duration_hours"`
	IncomingVolumeM3    float64  `json:"incoming_volume_m3"`
	RemainingCapacityM3 float64  `json:"remaining_capacity_m3"`
	TotalInflowM3PerH   float64  `json:"total_inflow_m3_per_hour"`
	TimeToFillHours     *float64 `json:"time_to_fill_hours"`
	TimeToFill          string   `json:"time_to_fill"`
	Risk                string   `json:"risk"`
	Urgency             string   `json:"urgency"`
}

type statusResponse struct {
	State      *stateResponse      `json:"state"`
	Assessment *assessmentResponse `json:"assessment"`
	LastAlert  *time.Time          `json:"last_alert"`
}

func (s *HTTPServer) handleStatus(c *gin.Context) {
	snap, err := s.useCase.Snapshot(c.Request.Context())
	if err != nil {
		log.Printf("Error loading station status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
		return
	}

	var resp statusResponse
	if snap.HasReading {
		resp.State = &stateResponse{
			HeightCM:    snap.State.Height,
			FlowRateLPM: snap.State.FlowRate,
			Status:      snap.Status.Label(),
			StatusRank:  snap.Status.Rank(),
			ReadAt:      snap.LastReading,
		}
	}
	if a := snap.Assessment; a != nil {
		ar := &assessmentResponse{
			IntensityMMPerHour:  a.Forecast.IntensityMMPerHour,
			DurationHours:       a.Forecast.DurationHours,
			IncomingVolumeM3:    a.Projection.IncomingVolume,
			RemainingCapacityM3: a.Projection.RemainingCapacity,
			TotalInflowM3PerH:   a.Projection.TotalInflowPerHour,
			TimeToFill:          a.Projection.TimeToFill.String(),
			Risk:                a.Risk.Label(),
			Urgency:             a.Urgency.String(),
		}
		// null when nothing flows in
		if !a.Projection.TimeToFill.NoInflow {
			h := a.Projection.TimeToFill.Hours
			ar.TimeToFillHours = &h
		}
		resp.Assessment = ar
	}
	if !snap.LastAlert.IsZero() {
		t := snap.LastAlert
		resp.LastAlert = &t
	}

	c.JSON(http.StatusOK, resp)
}

type readingResponse struct {
	DistanceCM  float64   `json:"distance_cm"`
	HeightCM    float64   `json:"height_cm"`
	FlowRateLPM float64   `json:"flow_rate_lpm"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

func (s *HTTPServer) handleReadings(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	records, err := s.useCase.RecentReadings(c.Request.Context(), limit)
	if err != nil {
		log.Printf("Error loading readings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load readings"})
		return
	}

	out := make([]readingResponse, 0, len(records))
	for _, r := range records {
		out = append(out, readingResponse{
			DistanceCM:  r.Reading.Distance,
			HeightCM:    r.State.Height,
			FlowRateLPM: r.State.FlowRate,
			Status:      r.Status,
			Timestamp:   r.Timestamp,
		})
	}
	c.JSON(http.StatusOK, gin.H{"readings": out})
}
