package syncsdk

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time copy of the client's traffic counters.
type Stats struct {
	Requests  int64
	BytesSent int64
	BytesRecv int64
	LastError string
	LastSeen  time.Time
}

type httpStats struct {
	requests   atomic.Int64
	bytesSent  atomic.Int64
	bytesRecv  atomic.Int64
	lastSeenNs atomic.Int64

	lastErrorValue atomic.Value // string
}

func newHTTPStats() *httpStats {
	s := &httpStats{}
	s.lastErrorValue.Store("")
	return s
}

func (s *httpStats) onSend(n int) {
	s.requests.Add(1)
	if n > 0 {
		s.bytesSent.Add(int64(n))
	}
}

func (s *httpStats) onRecv(n int) {
	if n > 0 {
		s.bytesRecv.Add(int64(n))
	}
	s.lastSeenNs.Store(time.Now().UnixNano())
}

func (s *httpStats) setLastError(err error) {
	if err == nil {
		return
	}
	s.lastErrorValue.Store(err.Error())
}

func (s *httpStats) snapshot() Stats {
	st := Stats{
		Requests:  s.requests.Load(),
		BytesSent: s.bytesSent.Load(),
		BytesRecv: s.bytesRecv.Load(),
		LastError: s.lastErrorValue.Load().(string),
	}
	if ns := s.lastSeenNs.Load(); ns > 0 {
		st.LastSeen = time.Unix(0, ns)
	}
	return st
}
