// Package dispatch resolves named services to addresses and invokes
// script-stack steps against them in order.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tracklet-io/tracklet/internal/apperr"
)

// Address locates one service instance.
type Address struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Directory maps service names to addresses. Built once at process
// start and read-only afterwards.
type Directory struct {
	services       map[string]Address
	forceLocalhost bool
}

// NewDirectory builds a Directory from a service map. When
// forceLocalhost is set every resolved host becomes localhost, for
// testing a topology that normally comes from a remote registry.
func NewDirectory(services map[string]Address, forceLocalhost bool) *Directory {
	copied := make(map[string]Address, len(services))
	for name, addr := range services {
		copied[name] = addr
	}
	return &Directory{services: copied, forceLocalhost: forceLocalhost}
}

// LoadDirectoryFile reads a YAML service directory:
//
//	services:
//	  calcd: {host: "10.0.0.5", port: 10033}
func LoadDirectoryFile(path string, forceLocalhost bool) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dispatch: read directory file: %w", err)
	}
	var doc struct {
		Services map[string]Address `yaml:"services"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("dispatch: parse directory file: %w", err)
	}
	if len(doc.Services) == 0 {
		return nil, fmt.Errorf("dispatch: directory file %s lists no services", path)
	}
	return NewDirectory(doc.Services, forceLocalhost), nil
}

// FetchDirectory retrieves the service directory from a remote registry
// as JSON. Called once at process start.
func FetchDirectory(ctx context.Context, registryURL string, timeout time.Duration, forceLocalhost bool) (*Directory, error) {
	const op = "dispatch.FetchDirectory"

	if timeout == 0 {
		timeout = 30 * time.Second
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, registryURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "create request", err)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.FromTransport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.FromStatus(op, resp.StatusCode, "")
	}

	var doc struct {
		Services map[string]Address `json:"services"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, apperr.Wrap(apperr.KindAPI, op, "decode registry response", err)
	}
	if len(doc.Services) == 0 {
		return nil, apperr.New(apperr.KindAPI, op, "registry returned no services")
	}
	return NewDirectory(doc.Services, forceLocalhost), nil
}

// Resolve returns the host:port for a named service.
func (d *Directory) Resolve(serviceName string) (string, error) {
	const op = "dispatch.Resolve"

	addr, ok := d.services[serviceName]
	if !ok {
		return "", apperr.Validationf(op, "unknown service %q", serviceName)
	}
	if addr.Host == "" || addr.Port == 0 {
		return "", apperr.Validationf(op, "service %q has incomplete address", serviceName)
	}
	host := addr.Host
	if d.forceLocalhost {
		host = "localhost"
	}
	return fmt.Sprintf("%s:%d", host, addr.Port), nil
}

// Services returns the directory's service names, for startup logging.
func (d *Directory) Services() []string {
	names := make([]string, 0, len(d.services))
	for name := range d.services {
		names = append(names, name)
	}
	return names
}
