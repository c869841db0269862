// Package fakeauthority is an in-memory stand-in for the inventory authority.
// Tests serve it through httptest; `invbf fake-authority` serves it for trials
// on a workstation. Readings are stored full-replace per device, and a push
// whose pushId was already applied is acknowledged without being applied again.
package fakeauthority

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jfloresavalos/InvBF/internal/authority"
	"github.com/jfloresavalos/InvBF/internal/inventory"
)

// Route patterns, usable with FailNext, Delay and Hits.
const (
	PathActive   = "/api/inventory/active"
	PathVersion  = "/api/catalog/version"
	PathCatalog  = "/api/catalog"
	PathStock    = "/api/inventory/:id/stock"
	PathReadings = "/api/inventory/:id/readings"
	PathSync     = "/api/inventory/:id/sync"
	PathProgress = "/api/inventory/:id/progress"
)

type fault struct {
	status    int
	detail    string
	remaining int
}

// Server holds the fake authority's state. It is safe for concurrent use.
type Server struct {
	mu          sync.Mutex
	session     *inventory.Session
	catalog     []inventory.CatalogEntry
	catalogHash string
	catalogAt   time.Time
	stock       map[int64][]inventory.StockItem
	readings    map[int64]map[string][]inventory.ReadingRecord
	acks        map[string]authority.PushResponse
	applied     int
	logs        []inventory.LogEntry

	faults map[string]*fault
	delays map[string]time.Duration
	hits   map[string]int

	engine *gin.Engine
}

// New builds an empty authority with no active session.
func New() *Server {
	s := &Server{
		stock:    make(map[int64][]inventory.StockItem),
		readings: make(map[int64]map[string][]inventory.ReadingRecord),
		acks:     make(map[string]authority.PushResponse),
		faults:   make(map[string]*fault),
		delays:   make(map[string]time.Duration),
		hits:     make(map[string]int),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), s.faultInjector())

	r.GET(PathActive, s.getActive)
	r.GET(PathVersion, s.getVersion)
	r.GET(PathCatalog, s.getCatalog)
	r.GET(PathStock, s.getStock)
	r.GET(PathReadings, s.getReadings)
	r.POST(PathSync, s.postSync)
	r.GET(PathProgress, s.getProgress)
	return r
}

// requestLogger logs each request through zerolog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Debug()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}
		event.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status_code", status).
			Str("latency", time.Since(start).String()).
			Msg("fake authority request")
	}
}

func (s *Server) faultInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		s.mu.Lock()
		s.hits[route]++
		delay := s.delays[route]
		var injected *fault
		if f := s.faults[route]; f != nil && f.remaining > 0 {
			f.remaining--
			copied := *f
			injected = &copied
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if injected != nil {
			c.AbortWithStatusJSON(injected.status, gin.H{"detail": injected.detail})
			return
		}
		c.Next()
	}
}

// FailNext makes the next n requests to route fail with status.
func (s *Server) FailNext(route string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = &fault{status: status, detail: http.StatusText(status), remaining: n}
}

// Delay holds every request to route for d before handling it.
func (s *Server) Delay(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[route] = d
}

// Hits reports how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// SetSession opens session; nil closes it.
func (s *Server) SetSession(session *inventory.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session == nil {
		s.session = nil
		return
	}
	copied := *session
	s.session = &copied
}

// SetCatalog replaces the catalog and returns its new hash.
func (s *Server) SetCatalog(entries []inventory.CatalogEntry) string {
	raw, _ := json.Marshal(entries)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = append([]inventory.CatalogEntry(nil), entries...)
	s.catalogHash = strconv.FormatUint(xxhash.Sum64(raw), 16)
	s.catalogAt = time.Now().UTC()
	return s.catalogHash
}

// SetStock replaces the theoretical stock of a session.
func (s *Server) SetStock(sessionID int64, items []inventory.StockItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[sessionID] = append([]inventory.StockItem(nil), items...)
}

// SetReadings replaces what the authority holds for device.
func (s *Server) SetReadings(sessionID int64, device string, records []inventory.ReadingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceReadingsLocked(sessionID)[device] = append([]inventory.ReadingRecord(nil), records...)
}

// Readings returns what the authority holds for device.
func (s *Server) Readings(sessionID int64, device string) []inventory.ReadingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inventory.ReadingRecord(nil), s.readings[sessionID][device]...)
}

// Applied counts pushes that changed state; replays are not counted.
func (s *Server) Applied() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// Logs returns the operational log entries received with pushes, newest first.
func (s *Server) Logs() []inventory.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inventory.LogEntry(nil), s.logs...)
}

func (s *Server) deviceReadingsLocked(sessionID int64) map[string][]inventory.ReadingRecord {
	m := s.readings[sessionID]
	if m == nil {
		m = make(map[string][]inventory.ReadingRecord)
		s.readings[sessionID] = m
	}
	return m
}

func (s *Server) getActive(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "inventory": s.session})
}

func (s *Server) getVersion(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ts any
	if !s.catalogAt.IsZero() {
		ts = s.catalogAt
	}
	c.JSON(http.StatusOK, gin.H{"hash": s.catalogHash, "count": len(s.catalog), "timestamp": ts})
}

func (s *Server) getCatalog(c *gin.Context) {
	s.mu.Lock()
	entries := append([]inventory.CatalogEntry{}, s.catalog...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, entries)
}

func sessionParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid inventory id"})
		return 0, false
	}
	return id, true
}

func (s *Server) getStock(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	items := append([]inventory.StockItem{}, s.stock[id]...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, items)
}

func (s *Server) getReadings(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	device := c.Query("device")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []inventory.ReadingRecord{}
	if device != "" {
		out = append(out, s.readings[id][device]...)
	} else {
		for _, dev := range sortedDevices(s.readings[id]) {
			out = append(out, s.readings[id][dev]...)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) postSync(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	var req authority.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload: " + err.Error()})
		return
	}
	if req.Device == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "device is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || s.session.ID != id {
		c.JSON(http.StatusConflict, gin.H{"detail": "inventory is not active"})
		return
	}
	if req.PushID != "" {
		if ack, seen := s.acks[req.PushID]; seen {
			c.JSON(http.StatusOK, ack)
			return
		}
	}

	records := make([]inventory.ReadingRecord, 0, len(req.Readings))
	for _, r := range req.Readings {
		if r.Quantity < 1 {
			r.Quantity = 1
		}
		if !r.Origin.Valid() {
			r.Origin = inventory.OriginScanner
		}
		records = append(records, r)
	}
	s.deviceReadingsLocked(id)[req.Device] = records
	s.logs = append(append([]inventory.LogEntry(nil), req.Log...), s.logs...)
	s.applied++

	ack := authority.PushResponse{Success: true, Records: len(records), PushID: req.PushID}
	if req.PushID != "" {
		s.acks[req.PushID] = ack
	}
	c.JSON(http.StatusOK, ack)
}

func (s *Server) getProgress(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	progress := s.progressLocked(id)
	s.mu.Unlock()
	c.JSON(http.StatusOK, progress)
}

func (s *Server) progressLocked(id int64) inventory.Progress {
	counted := make(map[string]int)
	var countedOrder []inventory.ReadingRecord
	byDevice := make(map[string]int)
	for _, dev := range sortedDevices(s.readings[id]) {
		for _, r := range s.readings[id][dev] {
			if _, seen := counted[r.SKU]; !seen {
				countedOrder = append(countedOrder, r)
			}
			counted[r.SKU] += r.Quantity
			byDevice[dev] += r.Quantity
		}
	}

	var p inventory.Progress
	p.ByDevice = byDevice
	inStock := make(map[string]bool)
	for _, it := range s.stock[id] {
		inStock[it.SKU] = true
		n := counted[it.SKU]
		p.Summary.TotalExpected += it.Expected
		p.Summary.TotalCounted += n
		if n > 0 {
			p.Summary.CountedProducts++
		}
		p.Products = append(p.Products, inventory.ProgressProduct{
			SKU: it.SKU, ALU: it.ALU, Description: it.Description, Department: it.Department,
			Expected: it.Expected, Counted: n, Difference: n - it.Expected,
		})
	}
	p.Summary.TotalProducts = len(s.stock[id])
	for _, r := range countedOrder {
		if inStock[r.SKU] {
			continue
		}
		n := counted[r.SKU]
		p.Summary.TotalCounted += n
		p.Summary.CountedProducts++
		p.Products = append(p.Products, inventory.ProgressProduct{
			SKU: r.SKU, ALU: r.ALU, Description: r.Description,
			Counted: n, Difference: n, Surplus: true,
		})
	}
	if p.Summary.TotalExpected > 0 {
		p.Summary.Percent = math.Round(float64(p.Summary.TotalCounted)/float64(p.Summary.TotalExpected)*1000) / 10
	}
	return p
}

func sortedDevices(m map[string][]inventory.ReadingRecord) []string {
	out := make([]string, 0, len(m))
	for dev := range m {
		out = append(out, dev)
	}
	sort.Strings(out)
	return out
}
