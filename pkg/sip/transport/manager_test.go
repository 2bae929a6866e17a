package transport_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/arzzra/ims_phone/pkg/metrics"
	"github.com/arzzra/ims_phone/pkg/sip/transport"
	"github.com/arzzra/ims_phone/pkg/sip/transport/mockstack"
)

func testConfig() transport.Config {
	return transport.Config{
		LocalHost: "127.0.0.1",
		LocalPort: 5070,
		Transport: transport.TransportUDP,
		ProxyHost: "pcscf.ims.example.com",
		User:      "alice",
		Domain:    "ims.example.com",
	}
}

// newRequest запрос с минимальным набором заголовков для построения ответа
func newRequest(method sip.RequestMethod) *sip.Request {
	aor := sip.Uri{Scheme: "sip", User: "alice", Host: "ims.example.com"}
	req := sip.NewRequest(method, aor)
	req.AppendHeader(&sip.FromHeader{Address: aor, Params: sip.HeaderParams{"tag": sip.RandString(8)}})
	req.AppendHeader(&sip.ToHeader{Address: aor, Params: sip.NewParams()})
	callID := sip.CallIDHeader(sip.RandString(16))
	req.AppendHeader(&callID)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: method})
	return req
}

// newManager создает менеджер с одним mock стеком
func newManager(t *testing.T) (*transport.Manager, *mockstack.Stack) {
	t.Helper()
	st := mockstack.New()
	m := transport.NewManager(func() transport.Stack { return st },
		transport.WithMetrics(metrics.NewMetricsCollector(metrics.DefaultMetricsConfig(), prometheus.NewRegistry())))
	require.NoError(t, m.InitStack(context.Background(), testConfig()))
	return m, st
}

func TestManager_StackNotInitialized(t *testing.T) {
	m := transport.NewManager(func() transport.Stack { return mockstack.New() })

	_, err := m.SendAndWait(context.Background(), newRequest(sip.PUBLISH), time.Second)
	assert.ErrorIs(t, err, transport.ErrStackNotInitialized)

	_, err = m.GenerateCallID()
	assert.ErrorIs(t, err, transport.ErrStackNotInitialized)

	_, err = m.LocalContact()
	assert.ErrorIs(t, err, transport.ErrStackNotInitialized)

	_, err = m.RouteSet()
	assert.ErrorIs(t, err, transport.ErrStackNotInitialized)

	// закрытие без стека ничего не делает
	m.CloseStack()
	assert.False(t, m.IsActive())
}

func TestManager_InitClosesActiveStack(t *testing.T) {
	var stacks []*mockstack.Stack
	m := transport.NewManager(func() transport.Stack {
		st := mockstack.New()
		stacks = append(stacks, st)
		return st
	})

	ctx := context.Background()
	require.NoError(t, m.InitStack(ctx, testConfig()))
	require.NoError(t, m.InitStack(ctx, testConfig()))
	require.Len(t, stacks, 2)

	inits, closes := stacks[0].Counts()
	assert.Equal(t, 1, inits)
	assert.Equal(t, 1, closes)
	assert.False(t, stacks[0].Active())
	assert.True(t, stacks[1].Active())

	m.CloseStack()
	m.CloseStack()
	_, closes = stacks[1].Counts()
	assert.Equal(t, 1, closes)
	assert.False(t, m.IsActive())
}

func TestManager_InitValidation(t *testing.T) {
	m := transport.NewManager(func() transport.Stack { return mockstack.New() })
	cfg := testConfig()
	cfg.Transport = "sctp"
	assert.ErrorIs(t, m.InitStack(context.Background(), cfg), transport.ErrInvalidConfig)

	st := mockstack.New()
	st.InitErr = errors.New("bind failed")
	m = transport.NewManager(func() transport.Stack { return st })
	assert.ErrorContains(t, m.InitStack(context.Background(), testConfig()), "bind failed")
	assert.False(t, m.IsActive())
}

func TestManager_SendAndWait(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, st := newManager(t)
	st.Push(mockstack.Reply(200, "OK", sip.NewHeader("Expires", "1800"), sip.NewHeader("SIP-ETag", "abc")))

	tc, err := m.SendAndWait(context.Background(), newRequest(sip.PUBLISH), time.Second)
	require.NoError(t, err)
	assert.False(t, tc.IsTimeout())
	assert.True(t, tc.IsSuccess())
	assert.Equal(t, 200, tc.StatusCode())
	assert.Equal(t, "OK", tc.ReasonPhrase())

	exp, ok := tc.Expires()
	assert.True(t, ok)
	assert.Equal(t, 1800, exp)

	etag, ok := tc.SIPETag()
	assert.True(t, ok)
	assert.Equal(t, "abc", etag)

	_, ok = tc.MinExpires()
	assert.False(t, ok)
	assert.Len(t, st.Sent(), 1)
}

func TestManager_SendAndWaitTimeout(t *testing.T) {
	m, st := newManager(t)
	st.Push(mockstack.Timeout())

	tc, err := m.SendAndWait(context.Background(), newRequest(sip.SUBSCRIBE), 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, tc.IsTimeout())
	assert.Equal(t, 0, tc.StatusCode())
	assert.False(t, tc.IsSuccess())
	assert.Nil(t, tc.Body())
}

func TestManager_SendAndWaitCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, st := newManager(t)
	st.SetFallback(mockstack.Hang())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.SendAndWait(ctx, newRequest(sip.MESSAGE), time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	// истечение собственного таймаута это не ошибка
	tc, err := m.SendAndWait(context.Background(), newRequest(sip.MESSAGE), 30*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, tc.IsTimeout())
}

func TestManager_ForbiddenTriggersReRegistration(t *testing.T) {
	tests := []struct {
		name        string
		method      sip.RequestMethod
		headers     []sip.Header
		wantErr     bool
		wantTrigger bool
	}{
		{name: "PUBLISH without Warning", method: sip.PUBLISH, wantErr: true, wantTrigger: true},
		{name: "SUBSCRIBE without Warning", method: sip.SUBSCRIBE, wantErr: true, wantTrigger: true},
		{
			name:    "PUBLISH with Warning",
			method:  sip.PUBLISH,
			headers: []sip.Header{sip.NewHeader("Warning", `399 pcscf "Policy"`)},
		},
		{name: "REGISTER", method: sip.REGISTER},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, st := newManager(t)
			st.Push(mockstack.Reply(403, "Forbidden", tt.headers...))

			triggered := make(chan struct{}, 1)
			m.SetReRegistrationTrigger(func() { triggered <- struct{}{} })

			tc, err := m.SendAndWait(context.Background(), newRequest(tt.method), time.Second)
			require.NotNil(t, tc)
			assert.Equal(t, 403, tc.StatusCode())

			if tt.wantErr {
				assert.ErrorIs(t, err, transport.ErrNotRegistered)
			} else {
				assert.NoError(t, err)
			}

			if tt.wantTrigger {
				select {
				case <-triggered:
				case <-time.After(time.Second):
					t.Fatal("re-registration trigger was not called")
				}
			} else {
				select {
				case <-triggered:
					t.Fatal("unexpected re-registration")
				case <-time.After(20 * time.Millisecond):
				}
			}
		})
	}
}

func TestManager_ReRegistrationCountedOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	st := mockstack.New()
	m := transport.NewManager(func() transport.Stack { return st },
		transport.WithMetrics(metrics.NewMetricsCollector(metrics.DefaultMetricsConfig(), reg)))
	require.NoError(t, m.InitStack(context.Background(), testConfig()))

	done := make(chan struct{}, 1)
	m.SetReRegistrationTrigger(func() { done <- struct{}{} })

	st.Push(mockstack.Reply(403, "Forbidden"))
	_, err := m.SendAndWait(context.Background(), newRequest(sip.SUBSCRIBE), time.Second)
	require.ErrorIs(t, err, transport.ErrNotRegistered)
	<-done

	expected := `
# HELP ims_sip_reregistrations_total Re-registrations triggered by 403 without Warning
# TYPE ims_sip_reregistrations_total counter
ims_sip_reregistrations_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ims_sip_reregistrations_total"))
}

func TestManager_HandlersSurviveReinit(t *testing.T) {
	var current *mockstack.Stack
	m := transport.NewManager(func() transport.Stack {
		current = mockstack.New()
		return current
	})

	m.OnRequest(sip.OPTIONS, func(req *sip.Request) *sip.Response {
		return sip.NewResponseFromRequest(req, 200, "OK", nil)
	})

	ctx := context.Background()
	require.NoError(t, m.InitStack(ctx, testConfig()))
	require.NoError(t, m.InitStack(ctx, testConfig()))

	resp := current.Deliver(newRequest(sip.OPTIONS))
	require.NotNil(t, resp)
	assert.Equal(t, 200, int(resp.StatusCode))
}

func TestManager_ConcurrentTransactions(t *testing.T) {
	m, st := newManager(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tc, err := m.SendAndWait(context.Background(), newRequest(sip.SUBSCRIBE), time.Second)
			if err == nil && !tc.IsSuccess() {
				err = errors.New("not success")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, st.Sent(), n)
}

func TestManager_Accessors(t *testing.T) {
	m, _ := newManager(t)

	id1, err := m.GenerateCallID()
	require.NoError(t, err)
	id2, err := m.GenerateCallID()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	contact, err := m.LocalContact()
	require.NoError(t, err)
	assert.Equal(t, "alice", contact.Address.User)

	routes, err := m.RouteSet()
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "pcscf.ims.example.com", routes[0].Host)

	assert.Equal(t, "127.0.0.1", m.Config().LocalHost)
}
