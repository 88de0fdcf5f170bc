package middleware

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ironroggers/ops-tracker/internal/config"
	apperrors "github.com/ironroggers/ops-tracker/internal/errors"
	"github.com/ironroggers/ops-tracker/internal/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

// countingDialer 每次拨号返回新的内存库并记录参数
type countingDialer struct {
	mu     sync.Mutex
	calls  int32
	uris   []string
	tokens []string
	stores []*knowledge.MemoryVectorStore
	err    error
}

func (d *countingDialer) dial(ctx context.Context, uri, token string) (knowledge.VectorStore, error) {
	atomic.AddInt32(&d.calls, 1)
	if d.err != nil {
		return nil, d.err
	}
	store := knowledge.NewMemoryVectorStore()
	d.mu.Lock()
	d.uris = append(d.uris, uri)
	d.tokens = append(d.tokens, token)
	d.stores = append(d.stores, store)
	d.mu.Unlock()
	return store, nil
}

func TestMilvusService_Credentials(t *testing.T) {
	global := config.MilvusConfig{URI: "https://global.zilliz.com", Token: "global-token"}

	cases := []struct {
		name      string
		env       map[string]string
		tenant    string
		wantURI   string
		wantToken string
		wantAlias string
	}{
		{
			name:      "default tenant uses global",
			tenant:    "default",
			wantURI:   global.URI,
			wantToken: global.Token,
			wantAlias: "default",
		},
		{
			name:      "verbatim key",
			env:       map[string]string{"MILVUS_URI_cwp-dev": "https://cwp.zilliz.com", "MILVUS_TOKEN_cwp-dev": "cwp-token"},
			tenant:    "cwp-dev.example.com",
			wantURI:   "https://cwp.zilliz.com",
			wantToken: "cwp-token",
			wantAlias: "cwp-dev",
		},
		{
			name:      "upper-case key",
			env:       map[string]string{"MILVUS_URI_CWP_DEV": "http://milvus:19530", "MILVUS_TOKEN_CWP_DEV": "t"},
			tenant:    "cwp-dev.example.com",
			wantURI:   "http://milvus:19530",
			wantToken: "t",
			wantAlias: "cwp-dev",
		},
		{
			name: "verbatim wins over upper-case",
			env: map[string]string{
				"MILVUS_URI_acme": "http://a:1",
				"MILVUS_URI_ACME": "http://b:2",
			},
			tenant:    "acme",
			wantURI:   "http://a:1",
			wantToken: global.Token,
			wantAlias: "acme",
		},
		{
			name:      "falls back to global independently",
			env:       map[string]string{"MILVUS_TOKEN_ACME": "acme-token"},
			tenant:    "acme.ops.io",
			wantURI:   global.URI,
			wantToken: "acme-token",
			wantAlias: "acme",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewMilvusService(global, nil, envMap(tc.env), nil)
			uri, token, alias := svc.Credentials(tc.tenant)
			assert.Equal(t, tc.wantURI, uri)
			assert.Equal(t, tc.wantToken, token)
			assert.Equal(t, tc.wantAlias, alias)
		})
	}
}

func TestMilvusService_ConnectErrors(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		cfg     config.MilvusConfig
		wantErr error
	}{
		{"no uri anywhere", config.MilvusConfig{}, apperrors.ErrConfiguration},
		{"https without token", config.MilvusConfig{URI: "https://in01.zillizcloud.com"}, apperrors.ErrAuth},
		{"plain uri without port", config.MilvusConfig{URI: "http://milvus"}, apperrors.ErrConfiguration},
		{"uri without scheme", config.MilvusConfig{URI: "milvus:19530"}, apperrors.ErrConfiguration},
		{"unsupported scheme", config.MilvusConfig{URI: "tcp://10.0.0.5:19530"}, apperrors.ErrConfiguration},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dialer := &countingDialer{}
			svc := NewMilvusService(tc.cfg, dialer.dial, nil, nil)

			_, err := svc.Connect(ctx, "acme")
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			assert.EqualValues(t, 0, dialer.calls)
			assert.False(t, svc.HasConnection("acme"))
		})
	}
}

func TestMilvusService_ConnectAccepted(t *testing.T) {
	ctx := context.Background()

	for _, uri := range []string{"https://in01.zillizcloud.com", "http://localhost:19530", "http://10.0.0.5:19530"} {
		dialer := &countingDialer{}
		svc := NewMilvusService(config.MilvusConfig{URI: uri, Token: "tok"}, dialer.dial, nil, nil)

		alias, err := svc.Connect(ctx, "plant-7.ops.io")
		require.NoError(t, err, uri)
		assert.Equal(t, "plant-7", alias)
		assert.True(t, svc.HasConnection("plant-7"))
		assert.Equal(t, []string{uri}, dialer.uris)
	}
}

func TestMilvusService_DialFailure(t *testing.T) {
	dialer := &countingDialer{err: errors.New("connection refused")}
	svc := NewMilvusService(config.MilvusConfig{URI: "http://milvus:19530"}, dialer.dial, nil, nil)

	_, err := svc.Connect(context.Background(), "default")
	require.Error(t, err)
	assert.False(t, apperrors.IsFatal(err))
	assert.False(t, svc.HasConnection("default"))
}

func TestMilvusService_ReconnectReplaces(t *testing.T) {
	ctx := context.Background()
	dialer := &countingDialer{}
	svc := NewMilvusService(config.MilvusConfig{URI: "http://milvus:19530"}, dialer.dial, nil, nil)

	_, err := svc.Connect(ctx, "acme")
	require.NoError(t, err)
	_, err = svc.Connect(ctx, "acme.other")
	require.NoError(t, err)

	require.Len(t, dialer.stores, 2)
	assert.True(t, dialer.stores[0].Closed())
	assert.False(t, dialer.stores[1].Closed())

	store, ok := svc.Store("acme")
	require.True(t, ok)
	assert.Same(t, dialer.stores[1], store)
}

func TestMilvusService_ResolveDialsOnce(t *testing.T) {
	ctx := context.Background()
	dialer := &countingDialer{}
	svc := NewMilvusService(config.MilvusConfig{URI: "http://milvus:19530"}, dialer.dial, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alias, store, err := svc.Resolve(ctx, "acme.ops.io")
			assert.NoError(t, err)
			assert.Equal(t, "acme", alias)
			assert.NotNil(t, store)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&dialer.calls))
}

func TestMilvusService_ResolveSurvivesCancelledFirstCaller(t *testing.T) {
	var calls int32
	entered := make(chan struct{}, 1)
	gate := make(chan struct{})
	dial := func(ctx context.Context, uri, token string) (knowledge.VectorStore, error) {
		atomic.AddInt32(&calls, 1)
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return knowledge.NewMemoryVectorStore(), nil
	}
	svc := NewMilvusService(config.MilvusConfig{URI: "http://milvus:19530"}, dial, nil, nil)

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, _, err := svc.Resolve(first, "acme")
		firstDone <- err
	}()
	<-entered

	secondDone := make(chan error, 1)
	go func() {
		_, _, err := svc.Resolve(context.Background(), "acme")
		secondDone <- err
	}()

	cancel()
	close(gate)

	assert.NoError(t, <-secondDone)
	assert.NoError(t, <-firstDone)
	assert.True(t, svc.HasConnection("acme"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestMilvusService_Disconnect(t *testing.T) {
	ctx := context.Background()
	dialer := &countingDialer{}
	svc := NewMilvusService(config.MilvusConfig{URI: "http://milvus:19530"}, dialer.dial, nil, nil)

	_, err := svc.Connect(ctx, "acme")
	require.NoError(t, err)
	_, err = svc.Connect(ctx, "globex")
	require.NoError(t, err)

	require.NoError(t, svc.Disconnect("acme.ops.io"))
	assert.False(t, svc.HasConnection("acme"))
	assert.True(t, svc.HasConnection("globex"))
	assert.NoError(t, svc.Disconnect("never-connected"))

	svc.DisconnectAll()
	assert.False(t, svc.HasConnection("globex"))
	for _, s := range dialer.stores {
		assert.True(t, s.Closed())
	}
}

func TestMilvusService_ActiveAlias(t *testing.T) {
	ctx := context.Background()

	failing := NewMilvusService(config.MilvusConfig{}, (&countingDialer{}).dial, nil, nil)
	assert.Error(t, failing.ConnectActive(ctx, DefaultTenant))
	assert.Equal(t, "", failing.ActiveAlias())
	assert.False(t, failing.Ready())

	svc := NewMilvusService(config.MilvusConfig{URI: "http://milvus:19530"}, (&countingDialer{}).dial, nil, nil)
	require.NoError(t, svc.ConnectActive(ctx, DefaultTenant))
	assert.Equal(t, DefaultTenant, svc.ActiveAlias())
	assert.True(t, svc.Ready())

	svc.DisconnectAll()
	assert.Equal(t, "", svc.ActiveAlias())
}

func TestMilvusService_Ping(t *testing.T) {
	ctx := context.Background()
	dialer := &countingDialer{}
	svc := NewMilvusService(config.MilvusConfig{URI: "http://milvus:19530"}, dialer.dial, nil, nil)

	assert.True(t, errors.Is(svc.Ping(ctx), apperrors.ErrConfiguration))

	require.NoError(t, svc.ConnectActive(ctx, DefaultTenant))
	assert.NoError(t, svc.Ping(ctx))

	dialer.stores[0].FailOn(knowledge.OpHas, "health_probe", errors.New("unavailable"))
	assert.Error(t, svc.Ping(ctx))
}
