package store

import (
	"fmt"
	"sort"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DialectorFactory builds a GORM dialector from a DSN.
type DialectorFactory func(dsn string) gorm.Dialector

var driverFactories = map[string]DialectorFactory{
	"sqlite":   sqlite.Open,
	"postgres": postgres.Open,
}

// RegisterDriver makes a database driver available to New. Drivers registered
// later with the same name override earlier ones.
func RegisterDriver(name string, factory DialectorFactory) {
	driverFactories[name] = factory
}

// GetDialector returns the dialector for the named driver.
func GetDialector(driver, dsn string) (gorm.Dialector, error) {
	factory, ok := driverFactories[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q (supported: %v)",
			driver, supportedDrivers())
	}
	return factory(dsn), nil
}

func supportedDrivers() []string {
	names := make([]string, 0, len(driverFactories))
	for name := range driverFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
