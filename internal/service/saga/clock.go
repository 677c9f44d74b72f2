package saga

import "time"

// Timer: остановимый таймер.
type Timer interface {
	Stop() bool
}

// Clock даёт менеджеру текущее время и таймеры. В тестах подменяется.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock: часы на основе пакета time.
func RealClock() Clock { return realClock{} }
