// Package mocks provides gomock implementations of the scheduler's
// dependencies.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockRepository(ctrl)
//	repo.EXPECT().ListActiveSubscriptions(gomock.Any()).Return(subs, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=scheduler_mock.go github.com/suxofrukt/WeatherTRPP/internal/scheduler Channel,Lease,Repository,WeatherProvider
