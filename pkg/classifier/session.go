package classifier

import (
	"strings"
	"sync"
	"time"
)

// CaptureConfig holds the thresholds of the capture policy. The zero value
// is not usable; DefaultCaptureConfig returns the standard thresholds.
type CaptureConfig struct {
	// MinElapsed is the session age after which MinActivities activities
	// are enough to capture.
	MinElapsed time.Duration

	// MinActivities is the activity count required together with MinElapsed.
	MinActivities int

	// ComplexActivities is the activity count required when the session
	// has seen high-complexity activity.
	ComplexActivities int

	// MaxElapsed captures the session unconditionally once exceeded.
	MaxElapsed time.Duration
}

// DefaultCaptureConfig returns the standard capture thresholds:
// 15 minutes / 3 activities, 2 activities under high complexity, and a
// 60 minute hard ceiling.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		MinElapsed:        15 * time.Minute,
		MinActivities:     3,
		ComplexActivities: 2,
		MaxElapsed:        60 * time.Minute,
	}
}

// Activity is one classified observation inside a work session.
type Activity struct {
	// Text is the raw activity text.
	Text string

	// At is when the activity was observed.
	At time.Time

	// Classification is the scoring result for Text.
	Classification Classification
}

// WorkSession is an ephemeral aggregation of related activity, keyed by
// (domain, work type). Sessions are created on first matching activity and
// destroyed the instant they are judged capture-worthy.
type WorkSession struct {
	// Domain is the session's domain key.
	Domain string

	// WorkType is the session's work-type key.
	WorkType string

	// Importance is the highest importance observed so far.
	Importance Importance

	// Complexity is the highest complexity observed so far.
	Complexity Complexity

	// StartedAt is when the first activity arrived.
	StartedAt time.Time

	// Activities holds the observations in arrival order.
	Activities []Activity

	indicators map[string]struct{}
	tools      []string
	toolSet    map[string]struct{}
}

// hasSuccessSignal reports whether any success or discovery indicator has
// been observed in this session.
func (s *WorkSession) hasSuccessSignal() bool {
	for ind := range s.indicators {
		if strings.HasPrefix(ind, "success:") || strings.HasPrefix(ind, "discovery:") {
			return true
		}
	}
	return false
}

func (s *WorkSession) absorb(a Activity) {
	s.Activities = append(s.Activities, a)
	for _, ind := range a.Classification.Indicators {
		s.indicators[ind] = struct{}{}
	}
	for _, tool := range a.Classification.Tools {
		if _, seen := s.toolSet[tool]; !seen {
			s.toolSet[tool] = struct{}{}
			s.tools = append(s.tools, tool)
		}
	}
	if importanceRank(a.Classification.Importance) > importanceRank(s.Importance) {
		s.Importance = a.Classification.Importance
	}
	if complexityRank(a.Classification.Complexity) > complexityRank(s.Complexity) {
		s.Complexity = a.Classification.Complexity
	}
}

func importanceRank(i Importance) int {
	switch i {
	case ImportanceHigh:
		return 2
	case ImportanceMedium:
		return 1
	}
	return 0
}

func complexityRank(c Complexity) int {
	switch c {
	case ComplexityHigh:
		return 2
	case ComplexityMedium:
		return 1
	}
	return 0
}

// CapturedMemory is the synthesized output of a capture-worthy session,
// ready to be stored as a memory record.
type CapturedMemory struct {
	// Title is "{Domain}: {workType} {outcome}".
	Title string

	// Content joins the session's activity texts.
	Content string

	// Tags lists domain, work type, complexity, outcome and up to three
	// referenced tools.
	Tags []string

	// Category is the domain's configured memory category.
	Category string

	// Domain and WorkType identify the captured session.
	Domain   string
	WorkType string

	// Importance is the session's final importance level.
	Importance Importance
}

type sessionKey struct {
	domain   string
	workType string
}

// SessionManager aggregates classified activity into work sessions and
// applies the capture policy. It holds no hidden process-wide state: the
// caller owns the manager and its lifetime.
//
// A SessionManager is safe for concurrent use.
type SessionManager struct {
	mu         sync.Mutex
	classifier *Classifier
	cfg        CaptureConfig
	sessions   map[sessionKey]*WorkSession
}

// NewSessionManager creates a session manager over the given classifier.
// A zero-valued cfg is replaced by DefaultCaptureConfig.
func NewSessionManager(cl *Classifier, cfg CaptureConfig) *SessionManager {
	if cfg == (CaptureConfig{}) {
		cfg = DefaultCaptureConfig()
	}
	return &SessionManager{
		classifier: cl,
		cfg:        cfg,
		sessions:   make(map[sessionKey]*WorkSession),
	}
}

// Observe classifies one activity, appends it to its (domain, workType)
// session, and evaluates the capture policy. When the session becomes
// capture-worthy it is destroyed and its synthesized memory returned with
// captured=true.
//
// The capture predicate is:
//
//	(importance high AND a success/discovery indicator seen) OR
//	(elapsed >= MinElapsed AND activities >= MinActivities) OR
//	(complexity high AND activities >= ComplexActivities) OR
//	elapsed >= MaxElapsed
func (m *SessionManager) Observe(text string, at time.Time) (captured *CapturedMemory, ok bool) {
	classification := m.classifier.Classify(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{domain: classification.Domain, workType: classification.WorkType}
	session, exists := m.sessions[key]
	if !exists {
		session = &WorkSession{
			Domain:     classification.Domain,
			WorkType:   classification.WorkType,
			Importance: ImportanceLow,
			Complexity: ComplexityLow,
			StartedAt:  at,
			indicators: make(map[string]struct{}),
			toolSet:    make(map[string]struct{}),
		}
		m.sessions[key] = session
	}

	session.absorb(Activity{Text: text, At: at, Classification: classification})

	if !m.captureWorthy(session, at) {
		return nil, false
	}

	delete(m.sessions, key)
	return m.synthesize(session), true
}

// ActiveSessions returns the number of sessions currently aggregating.
func (m *SessionManager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) captureWorthy(s *WorkSession, now time.Time) bool {
	elapsed := now.Sub(s.StartedAt)
	count := len(s.Activities)

	if s.Importance == ImportanceHigh && s.hasSuccessSignal() {
		return true
	}
	if elapsed >= m.cfg.MinElapsed && count >= m.cfg.MinActivities {
		return true
	}
	if s.Complexity == ComplexityHigh && count >= m.cfg.ComplexActivities {
		return true
	}
	return elapsed >= m.cfg.MaxElapsed
}

func (m *SessionManager) synthesize(s *WorkSession) *CapturedMemory {
	outcome := sessionOutcome(s)

	tags := []string{s.Domain, s.WorkType, string(s.Complexity), outcome}
	for i, tool := range s.tools {
		if i >= 3 {
			break
		}
		tags = append(tags, tool)
	}

	texts := make([]string, len(s.Activities))
	for i, a := range s.Activities {
		texts[i] = a.Text
	}

	return &CapturedMemory{
		Title:      displayDomain(s.Domain) + ": " + s.WorkType + " " + outcome,
		Content:    strings.Join(texts, "\n"),
		Tags:       tags,
		Category:   m.classifier.Category(s.Domain),
		Domain:     s.Domain,
		WorkType:   s.WorkType,
		Importance: s.Importance,
	}
}

func sessionOutcome(s *WorkSession) string {
	var success bool
	for ind := range s.indicators {
		if strings.HasPrefix(ind, "discovery:") {
			return "discovery"
		}
		if strings.HasPrefix(ind, "success:") {
			success = true
		}
	}
	if success {
		return "success"
	}
	return "session"
}

// displayDomain renders "software-development" as "Software Development".
func displayDomain(domain string) string {
	words := strings.Split(domain, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
