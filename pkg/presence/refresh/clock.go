package refresh

import "time"

// Timer отменяемый таймер
type Timer interface {
	Stop() bool
}

// Clock источник времени и таймеров потока
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RefreshDelay задержка до обновления: половина подтвержденного срока.
// Срок меньше 2 секунд дает задержку в 1 секунду.
func RefreshDelay(expires int) time.Duration {
	if expires < 2 {
		return time.Second
	}
	return time.Duration(expires) * time.Second / 2
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
