package authmachine

import (
	"context"
	"errors"

	"github.com/MrEthical07/authmachine/credstore"
	"github.com/MrEthical07/authmachine/state"
)

// meteredStore counts credential store failures. A missing record is not a
// failure.
type meteredStore struct {
	credstore.Store
	metrics *Metrics
}

func (s *meteredStore) Save(ctx context.Context, creds state.Credentials) error {
	err := s.Store.Save(ctx, creds)
	s.count(err)
	return err
}

func (s *meteredStore) Retrieve(ctx context.Context) (state.Credentials, error) {
	creds, err := s.Store.Retrieve(ctx)
	if !errors.Is(err, credstore.ErrNotFound) {
		s.count(err)
	}
	return creds, err
}

func (s *meteredStore) Delete(ctx context.Context) error {
	err := s.Store.Delete(ctx)
	s.count(err)
	return err
}

func (s *meteredStore) count(err error) {
	if err != nil {
		s.metrics.Inc(MetricCredentialStoreFailure)
	}
}
