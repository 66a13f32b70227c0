package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Server describes one backend a proxy built on this module can connect
// to via dcb.Manager.Connect.
type Server struct {
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Protocol string `yaml:"protocol"`
}

// ServerList is the secondary config format: a flat YAML list of backend
// servers, for embedders that ship server topology separately from the
// viper-driven Config above (e.g. generated by a provisioning tool that
// already emits YAML).
type ServerList struct {
	Servers []Server `yaml:"servers"`
}

// LoadServerList reads and parses a YAML server list from path.
func LoadServerList(path string) (ServerList, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ServerList{}, errors.Wrap(err, "config: read server list")
	}
	var sl ServerList
	if err := yaml.Unmarshal(b, &sl); err != nil {
		return ServerList{}, errors.Wrap(err, "config: parse server list")
	}
	return sl, nil
}
