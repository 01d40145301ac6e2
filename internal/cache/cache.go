// Package cache memoizes impact profiles, which are expensive to rebuild
// and only change when a symbol's candles are reloaded.
package cache

import (
	"context"
	"strings"

	"event-impact-lab/internal/domain"
)

// ProfileCache stores impact profiles by (symbol, event type).
// Implementations treat backend failures as misses.
type ProfileCache interface {
	Get(ctx context.Context, symbol, eventType string) (*domain.ImpactProfile, bool)
	Set(ctx context.Context, p *domain.ImpactProfile)
	// InvalidateSymbol drops every profile of symbol.
	InvalidateSymbol(ctx context.Context, symbol string)
}

func key(symbol, eventType string) string {
	return "profile:" + strings.ToUpper(symbol) + ":" + eventType
}

func symbolPrefix(symbol string) string {
	return "profile:" + strings.ToUpper(symbol) + ":"
}

func cloneProfile(p *domain.ImpactProfile) *domain.ImpactProfile {
	cp := *p
	cp.ATRPre = append([]float64(nil), p.ATRPre...)
	cp.ATRPost = append([]float64(nil), p.ATRPost...)
	cp.BodyPre = append([]float64(nil), p.BodyPre...)
	cp.BodyPost = append([]float64(nil), p.BodyPost...)
	return &cp
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, string) (*domain.ImpactProfile, bool) { return nil, false }
func (Nop) Set(context.Context, *domain.ImpactProfile) {}
func (Nop) InvalidateSymbol(context.Context, string) {}
