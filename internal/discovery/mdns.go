// ABOUTME: mDNS service discovery for streamplay
// ABOUTME: Browses for stream servers and advertises this player on the local network
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Resonate-Protocol/streamplay/internal/version"
	"github.com/hashicorp/mdns"
	log "github.com/sirupsen/logrus"
)

// DefaultService is the mDNS type stream servers advertise
const DefaultService = "_streamplay._tcp"

// browseTimeout bounds one mDNS query round
const browseTimeout = 3 * time.Second

// Config holds discovery configuration
type Config struct {
	// ServiceName is the instance name this player advertises
	ServiceName string

	// Service is the stream server type to browse (default: _streamplay._tcp)
	Service string

	// Port is the advertised port
	Port int

	// ServerMode advertises a stream server of type Service instead of a
	// player, with Path and Codec published as TXT records
	ServerMode bool
	Path       string
	Codec      string
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered stream server
type ServerInfo struct {
	Name  string
	Host  string
	Port  int
	Path  string
	Codec string
}

// URL returns the HTTP URL of the server's stream
func (s *ServerInfo) URL() string {
	path := s.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + path
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Service == "" {
		config.Service = DefaultService
	}
	if config.ServiceName == "" {
		config.ServiceName = "Streamplay Player"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// PlayerService returns the mDNS type players advertise for a server type
func PlayerService(service string) string {
	return strings.TrimSuffix(service, "._tcp") + "-player._tcp"
}

// Advertise advertises this player, or stream server in ServerMode, via
// mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := m.service(ips)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)",
		m.config.ServiceName, m.config.Port, service.Service)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

func (m *Manager) service(ips []net.IP) (*mdns.MDNSService, error) {
	// Choose service type based on mode
	serviceType := PlayerService(m.config.Service)
	txt := []string{"version=" + version.Version, "product=" + version.Product}
	if m.config.ServerMode {
		serviceType = m.config.Service
		if m.config.Path != "" {
			txt = append(txt, "path="+m.config.Path)
		}
		if m.config.Codec != "" {
			txt = append(txt, "codec="+m.config.Codec)
		}
	}

	return mdns.NewMDNSService(
		m.config.ServiceName,
		serviceType,
		"",
		"",
		m.config.Port,
		ips,
		txt,
	)
}

// Browse searches for stream servers in the background. Each server is
// reported once on Servers.
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

// browseLoop continuously browses for servers
func (m *Manager) browseLoop() {
	seen := make(map[string]bool)

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		for _, server := range query(m.config.Service, browseTimeout) {
			key := server.Name + "@" + server.URL()
			if seen[key] {
				continue
			}
			seen[key] = true

			log.Printf("Discovered server: %s at %s", server.Name, server.URL())

			select {
			case m.servers <- server:
			case <-m.ctx.Done():
				return
			}
		}
	}
}

// Servers returns the channel of discovered servers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// Discover runs one query round and returns the servers found
func Discover(service string, timeout time.Duration) []*ServerInfo {
	if service == "" {
		service = DefaultService
	}
	return query(service, timeout)
}

func query(service string, timeout time.Duration) []*ServerInfo {
	entries := make(chan *mdns.ServiceEntry, 10)
	done := make(chan []*ServerInfo)

	go func() {
		var servers []*ServerInfo
		for entry := range entries {
			if server, ok := serverFromEntry(entry, service); ok {
				servers = append(servers, server)
			}
		}
		done <- servers
	}()

	params := mdns.DefaultParams(service)
	params.Timeout = timeout
	params.Entries = entries
	params.DisableIPv6 = true
	if err := mdns.Query(params); err != nil {
		log.Debugf("mDNS query failed: %v", err)
	}
	close(entries)

	return <-done
}

// serverFromEntry converts an mDNS answer, skipping other service types
func serverFromEntry(entry *mdns.ServiceEntry, service string) (*ServerInfo, bool) {
	if !strings.Contains(entry.Name, service) || entry.Port == 0 {
		return nil, false
	}

	host := entry.Host
	if entry.AddrV4 != nil {
		host = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		host = entry.AddrV6.String()
	}
	if host == "" {
		return nil, false
	}

	name := entry.Name
	if i := strings.Index(name, "."+service); i > 0 {
		name = name[:i]
	}

	server := &ServerInfo{Name: name, Host: host, Port: entry.Port, Path: "/"}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			server.Path = value
		case "codec":
			server.Codec = value
		}
	}
	return server, true
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
