package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"goodwe-gateway/internal/domain"
	"goodwe-gateway/internal/repository"
	"goodwe-gateway/internal/sems"
)

// UpstreamClient es el subconjunto de sems.Client que usa el broker.
type UpstreamClient interface {
	CrossLogin(ctx context.Context, account, password string) (sems.LoginEnvelope, error)
	InverterDataByColumn(ctx context.Context, token string, q sems.ColumnQuery) ([]byte, error)
	PowerStationStatus(ctx context.Context, stationID string) ([]byte, error)
}

// Codes que el portal usa para indicar login exitoso.
var upstreamSuccessCodes = map[string]struct{}{
	"0":   {},
	"1":   {},
	"200": {},
}

// UpstreamBroker canjea credenciales del portal por un token opaco y reenvía consultas.
// Las credenciales del portal nunca se persisten.
type UpstreamBroker struct {
	logger  *zap.Logger
	client  UpstreamClient
	records repository.PowerDataRepository
	now     func() time.Time
}

func NewUpstreamBroker(logger *zap.Logger, client UpstreamClient, records repository.PowerDataRepository) *UpstreamBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpstreamBroker{
		logger:  logger,
		client:  client,
		records: records,
		now:     time.Now,
	}
}

// Authenticate hace el crosslogin y devuelve base64 del campo data compactado.
func (b *UpstreamBroker) Authenticate(ctx context.Context, account, password string) (string, error) {
	if b == nil || b.client == nil {
		return "", errors.New("upstream broker not configured")
	}
	account = strings.TrimSpace(account)
	if account == "" || password == "" {
		return "", ErrValidation
	}

	env, err := b.client.CrossLogin(ctx, account, password)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstreamAuthFailed, err)
	}
	if _, ok := upstreamSuccessCodes[env.CodeValue()]; !ok {
		return "", fmt.Errorf("%w: %w", ErrUpstreamAuthFailed, &sems.Error{
			Kind: sems.KindRejected,
			Op:   "crosslogin",
			Body: env.Raw,
			Err:  fmt.Errorf("code %q: %s", env.CodeValue(), env.Msg),
		})
	}

	trimmed := bytes.TrimSpace(env.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("%w: %w", ErrUpstreamAuthFailed, &sems.Error{
			Kind: sems.KindMalformedResponse,
			Op:   "crosslogin",
			Body: env.Raw,
			Err:  errors.New("missing session data"),
		})
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstreamAuthFailed, &sems.Error{
			Kind: sems.KindMalformedResponse,
			Op:   "crosslogin",
			Body: env.Raw,
			Err:  err,
		})
	}
	return base64.StdEncoding.EncodeToString(compact.Bytes()), nil
}

type FetchDataInput struct {
	Token    string
	DeviceID string
	Column   string
	Date     string
}

// FetchData consulta una columna de un inversor y registra la respuesta para el usuario.
func (b *UpstreamBroker) FetchData(ctx context.Context, userID string, input FetchDataInput) (json.RawMessage, error) {
	if b == nil || b.client == nil {
		return nil, errors.New("upstream broker not configured")
	}
	input.Token = strings.TrimSpace(input.Token)
	input.DeviceID = strings.TrimSpace(input.DeviceID)
	input.Column = strings.TrimSpace(input.Column)
	input.Date = strings.TrimSpace(input.Date)
	if input.Token == "" || input.DeviceID == "" || input.Column == "" || input.Date == "" {
		return nil, ErrValidation
	}

	payload, err := b.client.InverterDataByColumn(ctx, input.Token, sems.ColumnQuery{
		DeviceID: input.DeviceID,
		Column:   input.Column,
		Date:     input.Date,
	})
	if err != nil {
		return nil, err
	}
	b.record(ctx, userID, input.DeviceID, payload)
	return payload, nil
}

// FetchStationStatus consulta el estado público de una planta.
func (b *UpstreamBroker) FetchStationStatus(ctx context.Context, userID, stationID string) (json.RawMessage, error) {
	if b == nil || b.client == nil {
		return nil, errors.New("upstream broker not configured")
	}
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return nil, ErrValidation
	}

	payload, err := b.client.PowerStationStatus(ctx, stationID)
	if err != nil {
		return nil, err
	}
	b.record(ctx, userID, stationID, payload)
	return payload, nil
}

// record es best-effort: un fallo del histórico no afecta la respuesta.
func (b *UpstreamBroker) record(ctx context.Context, userID, deviceID string, payload []byte) {
	if b.records == nil {
		return
	}
	rec := domain.PowerDataRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		DeviceID:   deviceID,
		Payload:    json.RawMessage(payload),
		CapturedAt: b.now().UTC(),
	}
	if !json.Valid(payload) {
		encoded, _ := json.Marshal(string(payload))
		rec.Payload = encoded
	}
	if err := b.records.Append(ctx, rec); err != nil {
		b.logger.Warn("power data audit failed",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("device_id", deviceID),
		)
	}
}
