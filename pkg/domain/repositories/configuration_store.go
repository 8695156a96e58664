package repositories

import "github.com/gridml/netcase/pkg/domain/entities"

// ConfigurationStore persists the collections of a network case configuration
type ConfigurationStore interface {
	LoadIndexMapping(location string) (*entities.IndexMapping, error)
	SaveIndexMapping(location string, mapping *entities.IndexMapping) error
	LoadPatternSet(location string) ([]*entities.OperationPattern, error)
	SavePatternSet(location string, patterns []*entities.OperationPattern) error
}
