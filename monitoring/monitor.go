// Package monitoring turns a running scheduler into a web server, so that the
// run can be inspected and steered from outside.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	psprocess "github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/quantasim/monitoring/web"
	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/scheduler"
	"github.com/sarchlab/quantasim/sim/id"
)

// ProfileDuration is how long /api/profile samples the CPU.
const ProfileDuration = time.Second

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	scheduler   *scheduler.Scheduler
	portNumber  int
	openBrowser bool
	idGenerator id.IDGenerator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		idGenerator: id.NewSequentialIDGenerator(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithOpenBrowser makes StartServer open the monitoring page.
func (m *Monitor) WithOpenBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterScheduler registers the scheduler to monitor.
func (m *Monitor) RegisterScheduler(s *scheduler.Scheduler) {
	m.scheduler = s
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGenerator.Generate(),
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

// Handler returns the routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/state", m.state).Methods(http.MethodGet)
	r.HandleFunc("/api/process/{pid}", m.processDetails).
		Methods(http.MethodGet)
	r.HandleFunc("/api/admit", m.admit).Methods(http.MethodPost)
	r.HandleFunc("/api/pause", m.pause).Methods(http.MethodPost)
	r.HandleFunc("/api/continue", m.resume).Methods(http.MethodPost)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the address it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	if m.scheduler == nil {
		return "", errors.New("no scheduler registered")
	}

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	return url, nil
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]uint64{"now": uint64(m.scheduler.Clock().Now())})
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.scheduler.Snapshot())
}

func (m *Monitor) processDetails(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(mux.Vars(r)["pid"])
	if err != nil {
		http.Error(w, "invalid process ID", http.StatusBadRequest)
		return
	}

	snapshot, found := m.scheduler.Process(process.PID(pid))
	if !found {
		http.Error(w, "Process not found", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(1)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type admitReq struct {
	ID        int    `json:"id"`
	Remaining int    `json:"remaining"`
	Category  string `json:"category"`
}

func (m *Monitor) admit(w http.ResponseWriter, r *http.Request) {
	req := admitReq{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	category, err := process.ParseCategory(req.Category)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := process.New(process.PID(req.ID), req.Remaining, category)

	// The run loop owns p once it is admitted.
	admitted := p.Snapshot()
	if err := m.scheduler.Admit(p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, admitted)
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.scheduler.Pause()
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) resume(w http.ResponseWriter, _ *http.Request) {
	m.scheduler.Continue()
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBarStatus, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Status())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := psprocess.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(ProfileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}

	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
