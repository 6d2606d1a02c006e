package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/match-service/internal/domain"
	"github.com/cwrk-planet/match-service/internal/retry"
)

// storeCaller — единая retry-обёртка для всех обращений к ledger-у.
// Транзиентные ошибки повторяются по политике; после исчерпания бюджета
// наружу уходит ErrServiceUnavailable без деталей стора.
type storeCaller struct {
	policy    retry.Policy
	retryable func(error) bool
}

func newStoreCaller(policy retry.Policy, retryable func(error) bool) storeCaller {
	if policy.Attempts <= 0 {
		policy = retry.DefaultPolicy()
	}
	return storeCaller{policy: policy, retryable: retryable}
}

func (c storeCaller) call(ctx context.Context, op func(ctx context.Context) error) error {
	err := retry.Do(ctx, c.policy, c.retryable, op)
	if err == nil {
		return nil
	}
	if errors.Is(err, retry.ErrBudgetExhausted) {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	return err
}
