package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aluiziolira/go-topical-authority/embedding"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ReduceParams configures a dimensionality reduction.
type ReduceParams struct {
	Components int    `json:"n_components"`
	Neighbors  int    `json:"n_neighbors"`
	Metric     string `json:"metric"`
	Seed       int64  `json:"random_state"`
}

// NewReduceParams returns parameters for n points. The neighbour count never
// reaches n.
func NewReduceParams(n, components, maxNeighbors int, seed int64) ReduceParams {
	neighbors := maxNeighbors
	if neighbors <= 0 {
		neighbors = 15
	}
	if neighbors > n-1 {
		neighbors = n - 1
	}
	if neighbors < 1 {
		neighbors = 1
	}
	if components <= 0 {
		components = 5
	}
	return ReduceParams{
		Components: components,
		Neighbors:  neighbors,
		Metric:     "cosine",
		Seed:       seed,
	}
}

// Reducer projects vectors into a low-dimensional space.
type Reducer interface {
	Reduce(ctx context.Context, vectors [][]float64, p ReduceParams) ([][]float64, error)
}

// PCAReducer projects L2-normalised vectors onto their top principal
// components. Normalising first makes euclidean distance in the input
// monotone in cosine distance.
type PCAReducer struct{}

// Reduce implements Reducer.
func (PCAReducer) Reduce(ctx context.Context, vectors [][]float64, p ReduceParams) ([][]float64, error) {
	n := len(vectors)
	if n == 0 {
		return nil, nil
	}
	d := len(vectors[0])
	if d == 0 {
		return nil, errors.New("pca: zero-dimensional vectors")
	}

	data := mat.NewDense(n, d, nil)
	for i, v := range vectors {
		if len(v) != d {
			return nil, fmt.Errorf("pca: vector %d has %d dimensions, want %d", i, len(v), d)
		}
		row := embedding.Normalize(append([]float64(nil), v...))
		data.SetRow(i, row)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, errors.New("pca: decomposition failed")
	}
	var basis mat.Dense
	pc.VectorsTo(&basis)

	_, available := basis.Dims()
	k := p.Components
	if k <= 0 || k > available {
		k = available
	}

	centered := mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		var mean float64
		for i := 0; i < n; i++ {
			mean += data.At(i, j)
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			centered.Set(i, j, data.At(i, j)-mean)
		}
	}

	var projected mat.Dense
	projected.Mul(centered, basis.Slice(0, d, 0, k))

	out := make([][]float64, n)
	for i := range out {
		out[i] = mat.Row(nil, i, &projected)
	}
	return out, nil
}

// RemoteReducer delegates reduction to a model-serving process, typically a
// UMAP service, at POST {baseURL}/reduce.
type RemoteReducer struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteReducer builds a RemoteReducer. A nil client gets a traced default.
func NewRemoteReducer(baseURL string, hc *http.Client) *RemoteReducer {
	if hc == nil {
		hc = &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &RemoteReducer{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

type reduceRequest struct {
	Vectors [][]float64 `json:"vectors"`
	ReduceParams
}

type reduceResponse struct {
	Embedding [][]float64 `json:"embedding"`
}

// Reduce implements Reducer.
func (r *RemoteReducer) Reduce(ctx context.Context, vectors [][]float64, p ReduceParams) ([][]float64, error) {
	body, err := json.Marshal(reduceRequest{Vectors: vectors, ReduceParams: p})
	if err != nil {
		return nil, fmt.Errorf("encode reduce request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/reduce", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build reduce request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reduce request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("reduce request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out reduceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode reduce response: %w", err)
	}
	if len(out.Embedding) != len(vectors) {
		return nil, fmt.Errorf("reduce returned %d points for %d vectors", len(out.Embedding), len(vectors))
	}
	return out.Embedding, nil
}
