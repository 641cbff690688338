package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/carriernest/eld-gateway/internal/types"
)

var errBadCredentialHeader = errors.New("invalid credentials header")

// credentialsFromHeader decodes the resource-endpoint auth scheme: a
// bearer token holding base64(JSON(credentials)). This is the
// client-to-gateway scheme only; adapters build the provider's native
// auth headers themselves.
func credentialsFromHeader(r *http.Request) (types.Credentials, error) {
	var creds types.Credentials

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return creds, errBadCredentialHeader
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return creds, errBadCredentialHeader
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return creds, errBadCredentialHeader
	}
	return creds, nil
}

// queryParamsFromRequest reads the common filter set from the query string.
func queryParamsFromRequest(r *http.Request) *types.QueryParams {
	q := r.URL.Query()
	params := &types.QueryParams{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		DriverID:  q.Get("driverId"),
		VehicleID: q.Get("vehicleId"),
		Status:    q.Get("status"),
	}
	params.Limit = atoiOrZero(q.Get("limit"))
	params.Offset = atoiOrZero(q.Get("offset"))
	return params
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
