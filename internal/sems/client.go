package sems

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout = 20 * time.Second

	crossLoginPath    = "/api/v2/common/crosslogin"
	columnDataPath    = "/api/PowerStationMonitor/GetInverterDataByColumn"
	stationStatusPath = "/powerstation/PowerStatusSnMin/"

	maxBodyBytes = 4 << 20
)

// Client habla con la API del portal SEMS. Cada llamada es un único intento con timeout.
type Client struct {
	baseURL   string
	portalURL string
	timeout   time.Duration
	client    *http.Client
	logger    *zap.Logger
}

// NewClient construye un cliente HTTP contra el portal. portalURL puede quedar vacío
// si no se usa el endpoint público de estado.
func NewClient(baseURL, portalURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		portalURL: strings.TrimRight(portalURL, "/"),
		timeout:   timeout,
		client:    &http.Client{},
		logger:    logger,
	}
}

// LoginEnvelope es la respuesta de crosslogin. Code puede llegar como número o string.
type LoginEnvelope struct {
	Code json.RawMessage `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
	Raw  []byte          `json:"-"`
}

// CodeValue devuelve el code sin comillas.
func (e LoginEnvelope) CodeValue() string {
	return strings.Trim(strings.TrimSpace(string(e.Code)), `"`)
}

// ColumnQuery identifica una serie de un inversor para una fecha.
type ColumnQuery struct {
	DeviceID string
	Column   string
	Date     string
}

type handshakeToken struct {
	UID       string `json:"uid"`
	Timestamp int64  `json:"timestamp"`
	Token     string `json:"token"`
	Client    string `json:"client"`
	Version   string `json:"version"`
	Language  string `json:"language"`
}

// InitialToken es el token anónimo que el portal exige antes del login.
func InitialToken() string {
	raw, _ := json.Marshal(handshakeToken{Client: "web", Language: "en"})
	return base64.StdEncoding.EncodeToString(raw)
}

type crossLoginRequest struct {
	Account   string `json:"account"`
	Pwd       string `json:"pwd"`
	Agreement int    `json:"agreement_agreement"`
	IsLocal   bool   `json:"is_local"`
}

type columnRequest struct {
	Date   string `json:"date"`
	Column string `json:"column"`
	ID     string `json:"id"`
}

// CrossLogin intercambia las credenciales del portal por su payload de sesión.
// No interpreta el code; eso le corresponde al llamador.
func (c *Client) CrossLogin(ctx context.Context, account, password string) (LoginEnvelope, error) {
	const op = "crosslogin"
	body, err := c.do(ctx, op, http.MethodPost, c.baseURL+crossLoginPath, InitialToken(), crossLoginRequest{
		Account: account,
		Pwd:     password,
	})
	if err != nil {
		return LoginEnvelope{}, err
	}

	var env LoginEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return LoginEnvelope{}, &Error{Kind: KindMalformedResponse, Op: op, Body: body, Err: err}
	}
	env.Raw = body
	return env, nil
}

// InverterDataByColumn consulta una columna de un inversor con el token de sesión del portal.
func (c *Client) InverterDataByColumn(ctx context.Context, token string, q ColumnQuery) ([]byte, error) {
	return c.do(ctx, "column_data", http.MethodPost, c.baseURL+columnDataPath, token, columnRequest{
		Date:   q.Date,
		Column: q.Column,
		ID:     q.DeviceID,
	})
}

// PowerStationStatus consulta el estado público de una planta.
func (c *Client) PowerStationStatus(ctx context.Context, stationID string) ([]byte, error) {
	const op = "station_status"
	if c.portalURL == "" {
		return nil, &Error{Kind: KindMalformedRequest, Op: op, Err: errors.New("portal url not configured")}
	}
	return c.do(ctx, op, http.MethodGet, c.portalURL+stationStatusPath+url.PathEscape(stationID), "", nil)
}

func (c *Client) do(ctx context.Context, op, method, endpoint, token string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Kind: KindMalformedRequest, Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Kind: KindMalformedRequest, Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "*/*")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Token", token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("sems request failed", zap.String("op", op), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, &Error{Kind: KindUnreachable, Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &Error{Kind: KindUnreachable, Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(respBody) > maxBodyBytes {
		c.logger.Warn("sems response too large", zap.String("op", op), zap.Int("limit_bytes", maxBodyBytes))
		return nil, &Error{Kind: KindMalformedResponse, Op: op, Err: fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("sems error status",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil, &Error{Kind: KindRejected, Op: op, Status: resp.StatusCode, Body: respBody}
	}

	return respBody, nil
}
