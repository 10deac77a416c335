package monitor

import (
	"sync"

	"github.com/navidrome/crateindex/model"
)

// progressFeed fans out ScanProgressEvents from the scanner's OnProgress
// callback to every open /events websocket connection.
type progressFeed struct {
	mu   sync.Mutex
	subs map[chan model.ScanProgressEvent]struct{}
}

func newProgressFeed() *progressFeed {
	return &progressFeed{subs: make(map[chan model.ScanProgressEvent]struct{})}
}

func (f *progressFeed) subscribe() chan model.ScanProgressEvent {
	ch := make(chan model.ScanProgressEvent, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *progressFeed) unsubscribe(ch chan model.ScanProgressEvent) {
	f.mu.Lock()
	delete(f.subs, ch)
	f.mu.Unlock()
	close(ch)
}

func (f *progressFeed) broadcast(event model.ScanProgressEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- event:
		default:
			// a slow subscriber drops frames rather than blocking the scan
		}
	}
}
