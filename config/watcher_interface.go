package config

// Watcher publishes configuration changes. Subscribers receive every
// validated configuration loaded after they subscribed.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}
