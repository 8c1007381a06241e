package app

type Base struct{}

func (Base) ID() string { return "" }

type Named interface{ Name() string }

// Log traces services.
//
// @Aspect("log", scope="app", level="debug")
// @Introduce("services", introductions="marker")
type Log struct {
	// @Execution("* Service.*(..)")
	traced string
	// @Class("Service")
	services string
}

// @Before("traced", ordinal=1)
func (l *Log) Trace() {}

// @Around("traced")
func (l *Log) Time() {}

// @Entity("services")
// @Introduction("marker", interfaces="Marker|Named")
type Service struct {
	Base
	name string
}

func NewService(name string) *Service { return &Service{name: name} }

func (s *Service) Name() string { return s.name }

func (s *Service) Run(n int, args ...string) (int, error) { return 0, nil }
