package mcp

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/m4xw311/mcpchat/errors"
	"github.com/m4xw311/mcpchat/tools"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

const (
	clientName    = "mcpchat"
	clientVersion = "v1.0.0"
)

// ServerConfig describes how to launch one MCP server.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Config is the content of an mcpServers configuration file such as
// browser_mcp.json.
type Config struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// ParseConfig decodes an mcpServers document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse MCP config")
	}
	for name, srv := range cfg.MCPServers {
		if srv.Command == "" {
			return nil, errors.New("MCP server '%s' has no command", name)
		}
	}
	return &cfg, nil
}

// LoadConfig reads and decodes the mcpServers file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read MCP config '%s'", path)
	}
	return ParseConfig(data)
}

// clientSession is the part of *mcpsdk.ClientSession the client uses.
type clientSession interface {
	ListTools(ctx context.Context, params *mcpsdk.ListToolsParams) (*mcpsdk.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error)
	Close() error
}

// dialFunc starts the named server and returns its session. The returned
// command is nil when no subprocess is involved.
type dialFunc func(ctx context.Context, name string, srv ServerConfig) (clientSession, *exec.Cmd, error)

type serverSession struct {
	name  string
	cmd   *exec.Cmd
	conn  clientSession
	tools []*Tool
}

// Client manages the sessions to every configured MCP server.
type Client struct {
	servers map[string]ServerConfig
	log     zerolog.Logger
	stderr  io.Writer
	dial    dialFunc

	mu       sync.Mutex
	sessions []*serverSession
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for connection events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithStderr redirects the standard error of server subprocesses.
func WithStderr(w io.Writer) Option {
	return func(c *Client) { c.stderr = w }
}

// NewClient creates a client with no servers. Connecting it opens nothing.
func NewClient(opts ...Option) *Client {
	return FromConfig(&Config{}, opts...)
}

// FromConfig creates a client for the servers in cfg.
func FromConfig(cfg *Config, opts ...Option) *Client {
	c := &Client{
		servers: cfg.MCPServers,
		log:     zerolog.Nop(),
		stderr:  os.Stderr,
	}
	c.dial = c.dialCommand
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfigFile creates a client for the servers listed in the mcpServers
// file at path.
func FromConfigFile(path string, opts ...Option) (*Client, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return FromConfig(cfg, opts...), nil
}

// Servers returns the configured server names in sorted order.
func (c *Client) Servers() []string {
	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connect starts every configured server and lists its tools. If any server
// fails, the sessions opened so far are closed again. Connecting a client
// that is already connected does nothing.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.sessions) > 0 {
		return nil
	}

	var opened []*serverSession
	for _, name := range c.Servers() {
		s, err := c.connectServer(ctx, name, c.servers[name])
		if err != nil {
			for _, o := range opened {
				_ = c.closeSession(o)
			}
			return err
		}
		opened = append(opened, s)
	}
	c.sessions = opened
	return nil
}

func (c *Client) connectServer(ctx context.Context, name string, srv ServerConfig) (*serverSession, error) {
	conn, cmd, err := c.dial(ctx, name, srv)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}
	s := &serverSession{name: name, cmd: cmd, conn: conn}

	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := conn.ListTools(ctx, params)
		if err != nil {
			_ = c.closeSession(s)
			return nil, errors.Wrapf(err, "failed to list tools from MCP server '%s'", name)
		}
		for _, t := range list.Tools {
			s.tools = append(s.tools, newTool(s, t))
		}
		if list.NextCursor == "" {
			break
		}
		params.Cursor = list.NextCursor
	}

	c.log.Info().Str("server", name).Int("tools", len(s.tools)).Msg("initialized MCP client")
	return s, nil
}

func (c *Client) dialCommand(ctx context.Context, name string, srv ServerConfig) (clientSession, *exec.Cmd, error) {
	cmd := exec.Command(srv.Command, srv.Args...)
	cmd.Stderr = c.stderr
	if len(srv.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range srv.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: clientName, Version: clientVersion}, nil)
	conn, err := client.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return nil, nil, err
	}
	return conn, cmd, nil
}

// Tools returns the tools of every connected server, grouped by server in
// name order.
func (c *Client) Tools() []tools.Tool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []tools.Tool
	for _, s := range c.sessions {
		for _, t := range s.tools {
			out = append(out, t)
		}
	}
	return out
}

// IsConnected reports whether at least one server session is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions) > 0
}

// CloseAllSessions closes every open session and stops the server
// subprocesses. The client can be connected again afterwards.
func (c *Client) CloseAllSessions(ctx context.Context) error {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = nil
	c.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := c.closeSession(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) closeSession(s *serverSession) error {
	var errs []error
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "failed to close MCP session '%s'", s.name))
		}
	}
	if s.cmd != nil && s.cmd.Process != nil {
		c.log.Info().Str("server", s.name).Msg("terminating MCP server")
		if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, errors.Wrapf(err, "failed to stop MCP server '%s'", s.name))
		}
	}
	return errors.Join(errs...)
}
