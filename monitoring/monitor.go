// Package monitoring serves the progress of a running stimulus session over
// HTTP. The monitor only observes: it is fed by hooks and never touches the
// model or the time base.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/stimulus/hooking"
	"github.com/sarchlab/stimulus/monitoring/web"
	"github.com/sarchlab/stimulus/stimulus"
	"github.com/sarchlab/stimulus/timing"
)

// Monitor can turn a simulation into a server and allows external monitoring
// of the simulation.
type Monitor struct {
	portNumber      int
	profileDuration time.Duration
	logger          *zap.Logger
	server          *http.Server

	now atomic.Uint64

	lock         sync.Mutex
	maxTime      timing.VTimeInNs
	echoDistance int
	currentStage string
	reports      []stimulus.StageReport

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		profileDuration: time.Second,
		logger:          zap.NewNop(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn("Monitoring port not allowed, using a random port",
			zap.Int("port", portNumber))

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(logger *zap.Logger) *Monitor {
	m.logger = logger
	return m
}

// WithProfileDuration sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// RegisterTimeBase makes the monitor follow the simulated time.
func (m *Monitor) RegisterTimeBase(tb hooking.Hookable) {
	tb.AcceptHook(m)
}

// RegisterSession makes the monitor follow the stages of a session.
func (m *Monitor) RegisterSession(s *stimulus.Session) {
	m.lock.Lock()
	m.maxTime = s.MaxTime()
	m.lock.Unlock()

	s.AcceptHook(m)
}

// Func updates the monitored state. It runs on the simulation goroutine.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosTimeAdvanced:
		if now, ok := ctx.Item.(timing.VTimeInNs); ok {
			m.now.Store(uint64(now))
		}
	case stimulus.HookPosStageStart:
		m.stageStarted(ctx)
	case stimulus.HookPosStageEnd:
		m.stageEnded(ctx)
	}
}

func (m *Monitor) stageStarted(ctx hooking.HookCtx) {
	report, ok := ctx.Item.(stimulus.StageReport)
	if !ok {
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if s, ok := ctx.Domain.(*stimulus.Session); ok {
		m.echoDistance = s.EchoDistance()
	}

	m.currentStage = report.Stage
}

func (m *Monitor) stageEnded(ctx hooking.HookCtx) {
	report, ok := ctx.Item.(stimulus.StageReport)
	if !ok {
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.reports = append(m.reports, report)
	m.currentStage = ""
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the routes served by the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.handleNow)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/stages", m.listStages)
	r.HandleFunc("/api/state", m.handleState)
	r.HandleFunc("/api/session", m.describeSession)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitoring: listen: %w", err)
	}

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	m.logger.Info("Monitoring simulation", zap.String("url", url))

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("Monitoring server stopped", zap.Error(err))
		}
	}()

	return url, nil
}

// OpenInBrowser opens the monitor page in the default browser.
func (m *Monitor) OpenInBrowser(url string) {
	err := browser.OpenURL(url)
	if err != nil {
		m.logger.Warn("Cannot open browser", zap.Error(err))
	}
}

// Shutdown stops the server, if it is running.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

type nowRsp struct {
	Now uint64 `json:"now"`
}

func (m *Monitor) handleNow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, nowRsp{Now: m.now.Load()})
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type stageRsp struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Start   uint64 `json:"start"`
	End     uint64 `json:"end"`
	Periods int    `json:"periods"`
	Met     bool   `json:"met"`
}

func (m *Monitor) listStages(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	rsp := make([]stageRsp, 0, len(m.reports))
	for _, r := range m.reports {
		rsp = append(rsp, stageRsp{
			Stage:   r.Stage,
			Kind:    r.Kind.String(),
			Start:   uint64(r.Start),
			End:     uint64(r.End),
			Periods: r.Periods,
			Met:     r.Met,
		})
	}
	m.lock.Unlock()

	writeJSON(w, rsp)
}

// SessionState is the snapshot of the session served by /api/session.
type SessionState struct {
	Now          uint64
	MaxTime      uint64
	EchoDistance int
	CurrentStage string
	StagesDone   int
}

// State returns a snapshot of the monitored session.
func (m *Monitor) State() SessionState {
	m.lock.Lock()
	defer m.lock.Unlock()

	return SessionState{
		Now:          m.now.Load(),
		MaxTime:      uint64(m.maxTime),
		EchoDistance: m.echoDistance,
		CurrentStage: m.currentStage,
		StagesDone:   len(m.reports),
	}
}

func (m *Monitor) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.State())
}

func (m *Monitor) describeSession(w http.ResponseWriter, _ *http.Request) {
	state := m.State()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&state)
	serializer.SetMaxDepth(1)

	var buf bytes.Buffer

	err := serializer.Serialize(&buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

var _ hooking.Hook = (*Monitor)(nil)
