package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate/internal/apperr"
	"realestate/internal/endpoint"
	"realestate/internal/model"
)

func tradeXML(resultCode string, total, rows int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><response><header>`)
	fmt.Fprintf(&b, "<resultCode>%s</resultCode><resultMsg>OK</resultMsg></header><body><items>", resultCode)
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "<item><aptNm>단지%d</aptNm><dealAmount>82,500</dealAmount></item>", i)
	}
	fmt.Fprintf(&b, "</items><totalCount>%d</totalCount></body></response>", total)
	return b.String()
}

const gatewayAuthError = `<OpenAPI_ServiceResponse><cmmMsgHeader><errMsg>SERVICE ERROR</errMsg>` +
	`<returnAuthMsg>SERVICE_KEY_IS_NOT_REGISTERED_ERROR</returnAuthMsg><returnReasonCode>30</returnReasonCode>` +
	`</cmmMsgHeader></OpenAPI_ServiceResponse>`

const gatewayQuotaError = `<OpenAPI_ServiceResponse><cmmMsgHeader><errMsg>SERVICE ERROR</errMsg>` +
	`<returnAuthMsg>LIMITED_NUMBER_OF_SERVICE_REQUESTS_EXCEEDS_ERROR</returnAuthMsg><returnReasonCode>22</returnReasonCode>` +
	`</cmmMsgHeader></OpenAPI_ServiceResponse>`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client := NewWithConfig(Config{
		DataGoKrBaseURL: server.URL,
		ODCloudBaseURL:  server.URL,
		OnbidBaseURL:    server.URL,
		Credentials:     Credentials{DataGoKr: "test-key"},
		RateLimitPerSec: 1000,
		RateLimitBurst:  100,
		MaxAttempts:     3,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
	})
	return client, &calls
}

func aptTradeRequest(from, to model.Month) model.QueryRequest {
	return model.QueryRequest{
		From:     from,
		To:       to,
		Page:     1,
		PageSize: 100,
		Limit:    1000,
		Params:   map[string]string{"LAWD_CD": "11680"},
	}
}

var march2024 = model.Month{Year: 2024, Month: time.March}

func TestFetchAllSinglePage(t *testing.T) {
	var query atomic.Value
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		fmt.Fprint(w, tradeXML("000", 2, 2))
	})

	pages, err := client.FetchAll(context.Background(), endpoint.AptTrade.Descriptor(), aptTradeRequest(march2024, march2024))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Len(t, pages[0].Rows, 2)
	assert.Equal(t, 2, pages[0].TotalCount)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	values := query.Load().(url.Values)
	assert.Equal(t, []string{"11680"}, values["LAWD_CD"])
	assert.Equal(t, []string{"202403"}, values["DEAL_YMD"])
	assert.Equal(t, []string{"1"}, values["pageNo"])
	assert.Equal(t, []string{"100"}, values["numOfRows"])
	assert.Equal(t, []string{"test-key"}, values["serviceKey"])
}

func TestFetchAllFollowsTotalCount(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("pageNo"))
		rows := 100
		if page == 3 {
			rows = 50
		}
		fmt.Fprint(w, tradeXML("000", 250, rows))
	})

	pages, err := client.FetchAll(context.Background(), endpoint.AptTrade.Descriptor(), aptTradeRequest(march2024, march2024))
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.Equal(t, []int{1, 2, 3}, []int{pages[0].Number, pages[1].Number, pages[2].Number})
}

func TestFetchAllStopsAtRowBudget(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tradeXML("000", 500, 100))
	})

	req := aptTradeRequest(march2024, march2024)
	req.Limit = 100
	pages, err := client.FetchAll(context.Background(), endpoint.AptTrade.Descriptor(), req)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFetchAllIteratesMonthsInOrder(t *testing.T) {
	var mu sync.Mutex
	var months []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		months = append(months, r.URL.Query().Get("DEAL_YMD"))
		mu.Unlock()
		fmt.Fprint(w, tradeXML("000", 1, 1))
	})

	from := model.Month{Year: 2023, Month: time.November}
	to := model.Month{Year: 2024, Month: time.January}
	pages, err := client.FetchAll(context.Background(), endpoint.AptTrade.Descriptor(), aptTradeRequest(from, to))
	require.NoError(t, err)
	assert.Len(t, pages, 3)
	assert.Equal(t, []string{"202311", "202312", "202401"}, months)
}

func TestFetchAllStartsLaterMonthsAtFirstPage(t *testing.T) {
	var mu sync.Mutex
	var requests []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		mu.Lock()
		requests = append(requests, query.Get("DEAL_YMD")+"/"+query.Get("pageNo"))
		mu.Unlock()
		rows := 100
		if query.Get("pageNo") == "2" {
			rows = 50
		}
		fmt.Fprint(w, tradeXML("000", 150, rows))
	})

	req := aptTradeRequest(model.Month{Year: 2024, Month: time.January}, model.Month{Year: 2024, Month: time.February})
	req.Page = 2
	pages, err := client.FetchAll(context.Background(), endpoint.AptTrade.Descriptor(), req)
	require.NoError(t, err)
	assert.Len(t, pages, 3)
	assert.Equal(t, []string{"202401/2", "202402/1", "202402/2"}, requests)
}

func TestRetriesTransientThenSucceeds(t *testing.T) {
	var n int32
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, tradeXML("000", 1, 1))
	})

	pages, err := client.FetchAll(context.Background(), endpoint.AptTrade.Descriptor(), aptTradeRequest(march2024, march2024))
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestRetryableFailuresExhaustAttempts(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "too many requests",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "quota result code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, gatewayQuotaError)
			},
		},
		{
			name: "quota message in 403",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message":"API quota exceeded"}`)
			},
		},
		{
			name: "unparsable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "Unexpected errors")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := newTestClient(t, tt.handler)

			_, err := client.FetchAll(context.Background(), endpoint.AptTrade.Descriptor(), aptTradeRequest(march2024, march2024))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
			assert.Equal(t, int32(3), atomic.LoadInt32(calls))
		})
	}
}

func TestNonRetryableFailuresReturnImmediately(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			want: apperr.ErrAuthFailure,
		},
		{
			name: "gateway auth code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, gatewayAuthError)
			},
			want: apperr.ErrAuthFailure,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			want: apperr.ErrPermanent,
		},
		{
			name: "unknown result code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tradeXML("10", 0, 0))
			},
			want: apperr.ErrPermanent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := newTestClient(t, tt.handler)

			_, err := client.FetchAll(context.Background(), endpoint.AptTrade.Descriptor(), aptTradeRequest(march2024, march2024))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, apperr.ErrUpstreamUnavailable)
			assert.Equal(t, int32(1), atomic.LoadInt32(calls))
		})
	}
}

func TestMissingCredentialFailsBeforeNetwork(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tradeXML("000", 0, 0))
	})
	client.config.Credentials = Credentials{}

	_, err := client.FetchAll(context.Background(), endpoint.AptTrade.Descriptor(), aptTradeRequest(march2024, march2024))
	assert.ErrorIs(t, err, apperr.ErrAuthFailure)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestServiceKeyIsNotDoubleEncoded(t *testing.T) {
	for _, key := range []string{"abc+def/ghi==", "abc%2Bdef%2Fghi%3D%3D"} {
		t.Run(key, func(t *testing.T) {
			var got atomic.Value
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				got.Store(r.URL.Query().Get("serviceKey"))
				fmt.Fprint(w, tradeXML("000", 0, 0))
			})
			client.config.Credentials = Credentials{DataGoKr: key}

			_, err := client.FetchAll(context.Background(), endpoint.AptTrade.Descriptor(), aptTradeRequest(march2024, march2024))
			require.NoError(t, err)
			assert.Equal(t, "abc+def/ghi==", got.Load())
		})
	}
}

func TestODCloudCredentialModes(t *testing.T) {
	type seen struct {
		header     string
		serviceKey string
	}
	tests := []struct {
		name  string
		creds Credentials
		want  seen
	}{
		{name: "api key as header", creds: Credentials{ODCloudAPIKey: "od-key", DataGoKr: "portal"}, want: seen{header: "od-key"}},
		{name: "service key", creds: Credentials{ODCloudServiceKey: "od-svc"}, want: seen{serviceKey: "od-svc"}},
		{name: "falls back to data.go.kr", creds: Credentials{DataGoKr: "portal"}, want: seen{serviceKey: "portal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got atomic.Value
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				got.Store(seen{header: r.Header.Get("Authorization"), serviceKey: r.URL.Query().Get("serviceKey")})
				fmt.Fprint(w, `{"currentCount":0,"data":[],"matchCount":0,"page":1,"perPage":100,"totalCount":0}`)
			})
			client.config.Credentials = tt.creds

			req := model.QueryRequest{Page: 1, PageSize: 100, Limit: 100}
			_, err := client.FetchAll(context.Background(), endpoint.SubscriptionNotice.Descriptor(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Load())
		})
	}
}

func TestPathParamsAreSubstituted(t *testing.T) {
	var path atomic.Value
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		fmt.Fprint(w, `{"data":[{"STAT_DE":"202403"}],"totalCount":1}`)
	})

	req := model.QueryRequest{
		Page:       1,
		PageSize:   100,
		Limit:      100,
		PathParams: map[string]string{"stat": "getAPTCmpetrtAreaStat"},
	}
	pages, err := client.FetchAll(context.Background(), endpoint.SubscriptionStat.Descriptor(), req)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Len(t, pages[0].Rows, 1)
	assert.Equal(t, "/ApplyhomeStatSvc/v1/getAPTCmpetrtAreaStat", path.Load())
}

func TestFullPageModeStopsOnShortPage(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("pageNo"))
		rows := 20
		if page == 2 {
			rows = 5
		}
		var b strings.Builder
		b.WriteString("<response><header><resultCode>00</resultCode></header><body><items>")
		for i := 0; i < rows; i++ {
			fmt.Fprintf(&b, "<item><CLTR_NO>%d-%d</CLTR_NO></item>", page, i)
		}
		b.WriteString("</items></body></response>")
		fmt.Fprint(w, b.String())
	})

	req := model.QueryRequest{Page: 1, PageSize: 20, Limit: 500}
	pages, err := client.FetchAll(context.Background(), endpoint.KamcoAuction.Descriptor(), req)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestContextCancellationStopsRetries(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client.config.BaseDelay = time.Second
	client.config.MaxDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.FetchAll(ctx, endpoint.AptTrade.Descriptor(), aptTradeRequest(march2024, march2024))
	assert.ErrorIs(t, err, apperr.ErrTimedOut)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	canceled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = client.FetchAll(canceled, endpoint.AptTrade.Descriptor(), aptTradeRequest(march2024, march2024))
	assert.ErrorIs(t, err, apperr.ErrCanceled)
}

func TestBackoffIsCapped(t *testing.T) {
	client := NewWithConfig(Config{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})

	assert.Equal(t, 100*time.Millisecond, client.backoff(1, 0))
	assert.Equal(t, 200*time.Millisecond, client.backoff(2, 0))
	assert.Equal(t, 800*time.Millisecond, client.backoff(4, 0))
	assert.Equal(t, time.Second, client.backoff(6, 0))
	assert.Equal(t, time.Second, client.backoff(1, 30*time.Second))
	assert.Equal(t, 500*time.Millisecond, client.backoff(1, 500*time.Millisecond))
}
