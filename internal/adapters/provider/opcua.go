package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/jersme/enviro/internal/ports"
)

// OPCUAConfig captures the runtime details required to open an OPC UA session.
type OPCUAConfig struct {
	Name            string           `yaml:"name"`
	Endpoint        string           `yaml:"endpoint"`
	Username        string           `yaml:"username"`
	Password        string           `yaml:"password"`
	SecurityMode    string           `yaml:"security_mode"`
	SecurityPolicy  string           `yaml:"security_policy"`
	ApplicationName string           `yaml:"application_name"`
	Nodes           []OPCUANodeField `yaml:"nodes"`
}

// OPCUANodeField maps a node to a Reading field.
type OPCUANodeField struct {
	NodeID string `yaml:"node_id"`
	Field  string `yaml:"field"`
}

func (c *OPCUAConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "opcua"
	}
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "enviro"
	}
}

func (c *OPCUAConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	for _, n := range c.Nodes {
		if n.NodeID == "" || n.Field == "" {
			return fmt.Errorf("node %q: node_id and field are required", n.NodeID)
		}
	}
	return nil
}

type nodeReader interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
	Close(ctx context.Context) error
}

// OPCUA reads every configured node with one Read request per Sample.
type OPCUA struct {
	cfg    OPCUAConfig
	mu     sync.Mutex
	client nodeReader
	req    *ua.ReadRequest
}

func NewOPCUA(cfg OPCUAConfig) (*OPCUA, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	req := &ua.ReadRequest{
		MaxAge:             0,
		TimestampsToReturn: ua.TimestampsToReturnNeither,
	}
	for _, n := range cfg.Nodes {
		id, err := ua.ParseNodeID(n.NodeID)
		if err != nil {
			return nil, fmt.Errorf("parse node id %q: %w", n.NodeID, err)
		}
		req.NodesToRead = append(req.NodesToRead, &ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue})
	}
	return &OPCUA{cfg: cfg, req: req}, nil
}

// connectLocked opens the session on first use; o.mu must be held.
func (o *OPCUA) connectLocked(ctx context.Context) error {
	if o.client != nil {
		return nil
	}
	client, err := opcua.NewClient(o.cfg.Endpoint, o.clientOptions()...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}
	o.client = client
	return nil
}

func (o *OPCUA) Name() string { return o.cfg.Name }

func (o *OPCUA) Fields() []string {
	names := make([]string, len(o.cfg.Nodes))
	for i, n := range o.cfg.Nodes {
		names[i] = n.Field
	}
	return names
}

func (o *OPCUA) Sample(ctx context.Context) (map[string]float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.connectLocked(ctx); err != nil {
		return nil, err
	}

	resp, err := o.client.Read(ctx, o.req)
	if err != nil {
		return nil, fmt.Errorf("opcua read: %w", err)
	}
	if len(resp.Results) != len(o.cfg.Nodes) {
		return nil, fmt.Errorf("opcua read: got %d results for %d nodes", len(resp.Results), len(o.cfg.Nodes))
	}

	out := make(map[string]float64, len(o.cfg.Nodes))
	for i, node := range o.cfg.Nodes {
		res := resp.Results[i]
		if res.Status != ua.StatusOK {
			return nil, fmt.Errorf("node %s: %s", node.NodeID, res.Status)
		}
		v, ok := variantToFloat(res.Value)
		if !ok {
			return nil, fmt.Errorf("node %s: non-numeric value", node.NodeID)
		}
		out[node.Field] = v
	}
	return out, nil
}

func (o *OPCUA) Close() error {
	o.mu.Lock()
	client := o.client
	o.client = nil
	o.mu.Unlock()
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (o *OPCUA) clientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(o.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(o.cfg.SecurityPolicy)),
		opcua.ApplicationName(o.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if o.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(o.cfg.Username, o.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.Provider = (*OPCUA)(nil)
