// Package httpapi exposes devices and the frame over HTTP and websockets.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"dmxparams/internal/device"
	"dmxparams/internal/dmx"
	"dmxparams/internal/logger"
	"dmxparams/internal/param"
)

// Devices is the device state served by the API.
type Devices interface {
	Devices() []*device.Device
	DeviceValues(device string) ([]device.Value, error)
	Get(device, param string) (string, error)
	Set(device, param, value string) error
	Values() []device.Value
	Frame() dmx.Universe
}

// Status reports on the frame scheduler.
type Status interface {
	Running() bool
	Framerate() float64
	Frames() uint64
}

// Conf configures the server.
type Conf struct {
	Listen      string
	CORSOrigins []string
}

// Server is the HTTP API.
type Server struct {
	log     *logger.Log
	cfg     Conf
	devices Devices
	status  Status
	hub     *Hub
	srv     *http.Server
	started time.Time
}

// New creates a server. Call Broadcast from the frame loop to feed websocket clients.
func New(log *logger.Log, cfg Conf, devices Devices, status Status) *Server {
	log = log.Module("http")
	s := &Server{
		log:     log,
		cfg:     cfg,
		devices: devices,
		status:  status,
		hub:     NewHub(log, devices.Values),
		started: time.Now(),
	}
	s.srv = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}).Handler)

	router.Get("/health", s.health)
	router.Get("/frame", s.frame)
	router.Get("/ws", s.hub.ServeHTTP)
	router.Route("/devices", func(r chi.Router) {
		r.Get("/", s.listDevices)
		r.Get("/{device}", s.getDevice)
		r.Get("/{device}/params/{param}", s.getParam)
		r.Put("/{device}/params/{param}", s.setParam)
	})

	return router
}

// Broadcast pushes value changes to websocket clients.
func (s *Server) Broadcast(elapsed time.Duration) {
	s.hub.Broadcast(elapsed)
}

// Start listens in the background until Stop is called.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.Listen)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop shuts the server down gracefully. Websocket clients are
// disconnected; Shutdown does not track hijacked connections.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status    string  `json:"status"`
	Uptime    string  `json:"uptime"`
	Running   bool    `json:"running"`
	Framerate float64 `json:"framerate"`
	Frames    uint64  `json:"frames"`
	Clients   int     `json:"clients"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Running:   s.status.Running(),
		Framerate: s.status.Framerate(),
		Frames:    s.status.Frames(),
		Clients:   s.hub.Clients(),
	})
}

func (s *Server) frame(w http.ResponseWriter, _ *http.Request) {
	u := s.devices.Frame()
	channels := make([]int, len(u))
	for i, v := range u {
		channels[i] = int(v)
	}
	writeJSON(w, http.StatusOK, map[string][]int{"channels": channels})
}

type deviceInfo struct {
	Name    string   `json:"name"`
	Address int      `json:"address"`
	Width   int      `json:"width"`
	Params  []string `json:"params"`
}

func (s *Server) listDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.devices.Devices()
	infos := make([]deviceInfo, len(devices))
	for i, d := range devices {
		infos[i] = deviceInfo{Name: d.Name, Address: d.Address, Width: d.Width(), Params: d.Params()}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	values, err := s.devices.DeviceValues(chi.URLParam(r, "device"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *Server) getParam(w http.ResponseWriter, r *http.Request) {
	dev, name := chi.URLParam(r, "device"), chi.URLParam(r, "param")
	value, err := s.devices.Get(dev, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device.Value{Device: dev, Param: name, Value: value})
}

type setRequest struct {
	Value string `json:"value"`
}

func (s *Server) setParam(w http.ResponseWriter, r *http.Request) {
	dev, name := chi.URLParam(r, "device"), chi.URLParam(r, "param")

	var req setRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"value\": \"...\"}"})
		return
	}

	if err := s.devices.Set(dev, name, req.Value); err != nil {
		writeError(w, err)
		return
	}
	s.log.Debugf("%s.%s = %s", dev, name, req.Value)

	value, err := s.devices.Get(dev, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device.Value{Device: dev, Param: name, Value: value})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, device.ErrUnknownDevice), errors.Is(err, device.ErrUnknownParam):
		status = http.StatusNotFound
	case errors.Is(err, param.ErrSyntax), errors.Is(err, param.ErrUnknownRange):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
