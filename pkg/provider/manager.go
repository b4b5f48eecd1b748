package provider

import (
	"errors"
	"fmt"
)

// Manager discovers SPIs and the factories implementing them.
type Manager interface {
	LoadSpis() []Spi
	LoadFactories(spi Spi) []Factory
}

var (
	ErrEmptySpiName     = errors.New("provider manager: spi name is empty")
	ErrNilFactory       = errors.New("provider manager: factory is nil")
	ErrDuplicateSpi     = errors.New("provider manager: spi already registered")
	ErrDuplicateFactory = errors.New("provider manager: factory already registered")
)

// StaticManager is a Manager over an explicitly registered catalog.
type StaticManager struct {
	spis      []Spi
	factories map[string][]Factory
}

var _ Manager = (*StaticManager)(nil)

func NewStaticManager() *StaticManager {
	return &StaticManager{
		factories: map[string][]Factory{},
	}
}

func (m *StaticManager) RegisterSpi(spi Spi) error {
	if spi.Name == "" {
		return ErrEmptySpiName
	}
	for _, existing := range m.spis {
		if existing.Name == spi.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateSpi, spi.Name)
		}
	}
	m.spis = append(m.spis, spi)
	return nil
}

// RegisterFactory adds a factory under its SPI, which need not be registered
// yet.
func (m *StaticManager) RegisterFactory(factory Factory) error {
	if factory == nil {
		return ErrNilFactory
	}

	spi := factory.SpiName()
	if spi == "" {
		return ErrEmptySpiName
	}
	for _, existing := range m.factories[spi] {
		if existing.ID() == factory.ID() {
			return fmt.Errorf("%w: %s", ErrDuplicateFactory, KeyOf(factory))
		}
	}
	m.factories[spi] = append(m.factories[spi], factory)
	return nil
}

func (m *StaticManager) LoadSpis() []Spi {
	return append([]Spi(nil), m.spis...)
}

func (m *StaticManager) LoadFactories(spi Spi) []Factory {
	return append([]Factory(nil), m.factories[spi.Name]...)
}
