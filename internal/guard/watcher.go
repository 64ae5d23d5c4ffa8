package guard

import (
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/therapy-rooms/internal/session"
)

// Navigator выполняет переход без возможности вернуться назад.
type Navigator interface {
	Replace(route string)
}

// Watcher пересчитывает решение при изменении состояния сессии или сегмента
// и вызывает Navigator только для решений, отличных от Stay.
type Watcher struct {
	nav Navigator
	log *slog.Logger

	mu      sync.Mutex
	state   session.State
	segment string
	issued  Decision
}

// NewWatcher создает наблюдателя с начальным сегментом.
func NewWatcher(nav Navigator, segment string, log *slog.Logger) *Watcher {
	return &Watcher{nav: nav, log: log, segment: segment, issued: Stay}
}

// OnState принимает новое состояние сессии. Подходит для session.Store.Subscribe.
func (w *Watcher) OnState(st session.State) {
	w.mu.Lock()
	w.state = st
	d := w.evaluate()
	w.mu.Unlock()
	w.navigate(d)
}

// SetSegment сообщает о смене текущего сегмента навигации.
func (w *Watcher) SetSegment(segment string) Decision {
	w.mu.Lock()
	if Normalize(segment) != Normalize(w.segment) {
		w.issued = Stay
	}
	w.segment = segment
	d := w.evaluate()
	w.mu.Unlock()
	w.navigate(d)
	return Decide(w.input())
}

// Current возвращает решение для текущего состояния и сегмента.
func (w *Watcher) Current() Decision {
	return Decide(w.input())
}

func (w *Watcher) input() Input {
	w.mu.Lock()
	defer w.mu.Unlock()
	return FromState(w.state, w.segment)
}

// evaluate возвращает решение, которое ещё не было выдано для текущего сегмента.
// Вызывается под w.mu.
func (w *Watcher) evaluate() Decision {
	d := Decide(FromState(w.state, w.segment))
	if d == Stay || d == w.issued {
		return Stay
	}
	w.issued = d
	return d
}

func (w *Watcher) navigate(d Decision) {
	if d == Stay {
		return
	}
	w.log.Info("route guard redirect", slog.String("decision", string(d)), slog.String("route", d.Route()))
	w.nav.Replace(d.Route())
}

// FromState строит Input из снимка хранилища сессии.
func FromState(st session.State, segment string) Input {
	in := Input{Initialized: st.Initialized, HasUser: st.User != nil, Segment: segment}
	if st.User != nil {
		in.OnboardingCompleted = st.User.OnboardingCompleted
	}
	return in
}
