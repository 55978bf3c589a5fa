package services

import (
	"context"
	"fmt"

	"github.com/awcullen/opcua/client"
	"github.com/awcullen/opcua/ua"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/industrial-sec/uaenum/internal/config"
	"github.com/industrial-sec/uaenum/internal/model"
)

// SessionParams carries the per-run connection settings taken from the CLI.
type SessionParams struct {
	Endpoint           string
	Username           string
	Password           string
	PolicyNone         bool
	InsecureSkipVerify bool
}

// SessionSvc owns the secure-channel/session handle for the whole run.
type SessionSvc struct {
	ch            *client.Client
	namespaceURIs []string
	logger        *logrus.Logger
}

// NewSessionSvc dials the endpoint and reads the server namespace table.
// A missing namespace table is tolerated; NodeId expansion then keeps
// namespace indexes as-is.
func NewSessionSvc(ctx context.Context, params SessionParams, cfg config.Client, logger *logrus.Logger) (*SessionSvc, error) {
	ch, err := client.Dial(ctx, params.Endpoint, dialOptions(params, cfg)...)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", params.Endpoint)
	}

	svc := &SessionSvc{ch: ch, logger: logger}
	if err := svc.readNamespaceArray(ctx); err != nil {
		logger.WithError(err).Warnln("Could not read server namespace array")
	}
	return svc, nil
}

// dialOptions assembles the client options for one run. The None policy is
// selected by URI and message security mode.
func dialOptions(params SessionParams, cfg config.Client) []client.Option {
	opts := []client.Option{
		client.WithApplicationName(cfg.ApplicationName),
		client.WithSessionTimeout(cfg.SessionTimeout),
		client.WithConnectTimeout(cfg.ConnectTimeout),
	}
	if params.Username != "" {
		opts = append(opts, client.WithUserNameIdentity(params.Username, params.Password))
	}
	if params.PolicyNone {
		opts = append(opts, client.WithSecurityPolicyURI(ua.SecurityPolicyURINone, ua.MessageSecurityModeNone))
	}
	if params.InsecureSkipVerify {
		opts = append(opts, client.WithInsecureSkipVerify())
	}
	return opts
}

func (s *SessionSvc) GetClient() *client.Client {
	return s.ch
}

func (s *SessionSvc) NamespaceURIs() []string {
	return s.namespaceURIs
}

// ServerInfo reads the ServerStatus variable and combines it with the
// namespace table.
func (s *SessionSvc) ServerInfo(ctx context.Context) (*model.ServerInfo, error) {
	req := &ua.ReadRequest{
		NodesToRead: []ua.ReadValueID{
			{NodeID: ua.VariableIDServerServerStatus, AttributeID: ua.AttributeIDValue},
		},
	}
	res, err := s.ch.Read(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "read ServerStatus")
	}
	status, ok := res.Results[0].Value.(ua.ServerStatusDataType)
	if !ok {
		return nil, errors.New("server returned no ServerStatus value")
	}
	return &model.ServerInfo{
		ProductName:      status.BuildInfo.ProductName,
		ManufacturerName: status.BuildInfo.ManufacturerName,
		SoftwareVersion:  status.BuildInfo.SoftwareVersion,
		State:            fmt.Sprintf("%s", status.State),
		StartTime:        status.StartTime,
		Namespaces:       s.namespaceURIs,
	}, nil
}

// Close releases the session; Abort tears the channel down on error paths.
func (s *SessionSvc) Close(ctx context.Context) error {
	if err := s.ch.Close(ctx); err != nil {
		s.ch.Abort(ctx)
		return errors.Wrap(err, "close session")
	}
	return nil
}

func (s *SessionSvc) readNamespaceArray(ctx context.Context) error {
	req := &ua.ReadRequest{
		NodesToRead: []ua.ReadValueID{
			{NodeID: ua.VariableIDServerNamespaceArray, AttributeID: ua.AttributeIDValue},
		},
	}
	res, err := s.ch.Read(ctx, req)
	if err != nil {
		return err
	}
	if res.Results[0].StatusCode.IsBad() {
		return res.Results[0].StatusCode
	}
	uris, ok := res.Results[0].Value.([]string)
	if !ok {
		return errors.New("namespace array has unexpected type")
	}
	s.namespaceURIs = uris
	return nil
}
