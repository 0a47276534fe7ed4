package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const regionTable = `{"StanReginCd":[{"head":[{"totalCount":2},{"numOfRows":"1000","pageNo":"1","type":"JSON"},` +
	`{"RESULT":{"resultCode":"INFO-0","resultMsg":"NORMAL SERVICE"}}]},{"row":[` +
	`{"region_cd":"1168000000","locatadd_nm":"서울특별시 강남구","locallow_nm":"강남구","locathigh_cd":"1100000000"},` +
	`{"region_cd":"1165000000","locatadd_nm":"서울특별시 서초구","locallow_nm":"서초구","locathigh_cd":"1100000000"}` +
	`]}]}`

const tradePage = `<?xml version="1.0" encoding="UTF-8"?><response><header><resultCode>000</resultCode>` +
	`<resultMsg>OK</resultMsg></header><body><items><item><aptNm>래미안</aptNm><dealAmount>82,500</dealAmount>` +
	`<excluUseAr>84.97</excluUseAr><dealYear>2024</dealYear><dealMonth>3</dealMonth><dealDay>15</dealDay>` +
	`</item></items><numOfRows>100</numOfRows><pageNo>1</pageNo><totalCount>1</totalCount></body></response>`

var fixedNow = func() time.Time { return time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC) }

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := New(Options{
		Output:    &out,
		ErrOutput: &errOut,
		EnvFiles:  []string{filepath.Join(t.TempDir(), "absent.env")},
		Now:       fixedNow,
	})
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	c.SetArgs(args)
	err := c.Execute(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "realestate.yaml")
	body := fmt.Sprintf(`
credentials:
  data_go_kr: test-key
portals:
  data_go_kr: %s
http:
  rate_limit_per_sec: 1000
  rate_limit_burst: 100
retry:
  max_attempts: 2
  base_delay: 1ms
  max_delay: 1ms
log:
  format: json
  level: warn
`, baseURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func fakePortal(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "StanReginCd"):
			fmt.Fprint(w, regionTable)
		case strings.Contains(r.URL.Path, "RTMSDataSvcAptTrade"):
			fmt.Fprint(w, tradePage)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLoanCommand(t *testing.T) {
	out, err := runCLI(t, "", "loan", "--principal", "120000000", "--rate", "0.04", "--term", "360")
	require.NoError(t, err)

	var doc struct {
		GeneratedAt string `json:"generated_at"`
		Result      struct {
			Data struct {
				MonthlyPaymentWon int64 `json:"monthly_payment_won"`
				Schedule          []any `json:"schedule"`
			} `json:"data"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "2024-06-15T00:00:00Z", doc.GeneratedAt)
	assert.EqualValues(t, 572_898, doc.Result.Data.MonthlyPaymentWon)
	assert.Len(t, doc.Result.Data.Schedule, 360)
}

func TestGrowthCommandRejectsBadInput(t *testing.T) {
	out, err := runCLI(t, "", "growth", "--principal", "1000", "--rate", "0.05", "--periods", "0")
	require.Error(t, err)
	assert.Contains(t, out, `"kind": "invalid_input"`)
}

func TestCashflowCommand(t *testing.T) {
	out, err := runCLI(t, "", "cashflow", "--income", "3000000", "--loan-payment", "1000000", "--months", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"living_cost_auto": true`)
	assert.Contains(t, out, `"living_cost_won": 1200000`)
}

func TestQueryCommandEndToEnd(t *testing.T) {
	server := fakePortal(t)
	configPath := writeConfig(t, server.URL)
	outFile := filepath.Join(t.TempDir(), "nested", "trades.json")

	stdout, err := runCLI(t, configPath, "query", "get_apartment_trades", "--region", "강남구",
		"--from", "2024-03", "--page-size", "100", "--out", outFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+outFile)

	raw, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var doc struct {
		GeneratedAt string `json:"generated_at"`
		Result      struct {
			Tool string `json:"tool"`
			Data struct {
				Trades []struct {
					PriceWon int64   `json:"price_won"`
					AreaM2   float64 `json:"area_m2"`
				} `json:"trades"`
			} `json:"data"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "get_apartment_trades", doc.Result.Tool)
	require.Len(t, doc.Result.Data.Trades, 1)
	assert.EqualValues(t, 825_000_000, doc.Result.Data.Trades[0].PriceWon)
	assert.Equal(t, 84.97, doc.Result.Data.Trades[0].AreaM2)
}

func TestQueryCommandBadFilter(t *testing.T) {
	_, err := runCLI(t, "", "query", "get_apartment_trades", "-f", "novalue")
	assert.ErrorContains(t, err, "key=value")
}

func TestExportCommand(t *testing.T) {
	server := fakePortal(t)
	configPath := writeConfig(t, server.URL)
	outDir := t.TempDir()
	listFile := filepath.Join(t.TempDir(), "regions.txt")
	require.NoError(t, os.WriteFile(listFile, []byte("# seoul\n서초구\n\n없는구\n"), 0o600))

	stdout, err := runCLI(t, configPath, "export", "get_apartment_trades", "--regions", "강남구",
		"--regions-file", listFile, "--from", "202403", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "files=2 failed=1")

	raw, err := os.ReadFile(filepath.Join(outDir, "meta.json"))
	require.NoError(t, err)
	var meta exportMeta
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, []string{"get_apartment_trades_강남구.json", "get_apartment_trades_서초구.json"}, meta.Files)
	assert.Equal(t, []string{"없는구"}, meta.Failed)
	assert.FileExists(t, filepath.Join(outDir, "get_apartment_trades_강남구.json"))
}

func TestParseListAndFileName(t *testing.T) {
	assert.Equal(t, []string{"강남구", "서초구"}, parseList(" 강남구, ,서초구 "))
	assert.Nil(t, parseList(""))
	assert.Equal(t, "get_villa_trades_서울_강남구.json", fileName("get_villa_trades", "서울 강남구"))
}
