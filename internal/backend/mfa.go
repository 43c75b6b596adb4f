package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wolfman30/clinic-console/internal/mfa"
)

var _ mfa.Backend = (*Client)(nil)

type mfaCode struct {
	Code string `json:"code"`
}

// MFAStatus reports whether MFA is enabled for the calling user.
func (c *Client) MFAStatus(ctx context.Context) (mfa.Status, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, "mfa_status", http.MethodGet, "/api/mfa/status", nil, &raw); err != nil {
		return mfa.Status{}, err
	}
	status, err := normalizeMFAStatus(raw)
	if err != nil {
		return mfa.Status{}, c.malformed("mfa_status", err)
	}
	return status, nil
}

// MFASetup requests a new TOTP secret and QR code.
func (c *Client) MFASetup(ctx context.Context) (mfa.Setup, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, "mfa_setup", http.MethodPost, "/api/mfa/setup", nil, &raw); err != nil {
		return mfa.Setup{}, err
	}
	setup, err := normalizeMFASetup(raw)
	if err != nil {
		return mfa.Setup{}, c.malformed("mfa_setup", err)
	}
	return setup, nil
}

// MFAVerify confirms a code during setup.
func (c *Client) MFAVerify(ctx context.Context, code string) (mfa.VerifyResult, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, "mfa_verify", http.MethodPost, "/api/mfa/verify", mfaCode{Code: code}, &raw); err != nil {
		return mfa.VerifyResult{}, err
	}
	if len(raw) == 0 {
		return mfa.VerifyResult{}, nil
	}
	f, err := decodeFields(raw)
	if err != nil {
		return mfa.VerifyResult{}, nil
	}
	return mfa.VerifyResult{BackupCodes: f.list("backup_codes")}, nil
}

// MFADisable turns MFA off.
func (c *Client) MFADisable(ctx context.Context, code string) error {
	return c.doJSON(ctx, "mfa_disable", http.MethodPost, "/api/mfa/disable", mfaCode{Code: code}, nil)
}
