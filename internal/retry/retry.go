package retry

import (
	"context"
	"errors"
	"time"
)

// ErrBudgetExhausted оборачивает последнюю ошибку после исчерпания попыток.
var ErrBudgetExhausted = errors.New("retry budget exhausted")

type Policy struct {
	Attempts  int           // всего попыток, включая первую
	BaseDelay time.Duration // задержка перед второй попыткой, далее x2
	MaxDelay  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// Do выполняет op с ретраями по политике. Повторяются только ошибки,
// для которых retryable вернул true; остальные отдаются сразу.
func Do(ctx context.Context, p Policy, retryable func(error) bool, op func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}

	delay := p.BaseDelay
	var last error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		last = op(ctx)
		if last == nil {
			return nil
		}
		if retryable == nil || !retryable(last) {
			return last
		}
		if attempt == p.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return errors.Join(ErrBudgetExhausted, last)
}
