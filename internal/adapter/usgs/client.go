package usgs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/couchcryptid/burnscar-etl/internal/observability"
	"github.com/google/uuid"
)

// DefaultEndpoint is the 3DEP elevation image service.
const DefaultEndpoint = "https://elevation.nationalmap.gov/arcgis/rest/services/3DEPElevation/ImageServer/exportImage"

// ServiceCRS is the grid the service is queried in, one metre per pixel.
const ServiceCRS = "EPSG:3857"

// Areas above this many square metres are resampled to coarseResolution.
const (
	largeAreaM2      = 10e6
	coarseResolution = 2.0
)

// RasterTools is the raster plumbing the client needs around the HTTP calls.
type RasterTools interface {
	domain.RasterStore
	domain.Warper
	domain.Projector
}

// Client implements domain.ElevationSource against the USGS 3DEP exportImage API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	blockSize  int
	tmpDir     string
	tools      RasterTools
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a 3DEP client that stages downloaded blocks in tmpDir.
func NewClient(baseURL string, timeout time.Duration, blockSize int, tmpDir string, tools RasterTools, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultEndpoint
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		blockSize: blockSize,
		tmpDir:    tmpDir,
		tools:     tools,
		metrics:   metrics,
		logger:    logger,
	}
}

// FetchElevation downloads the elevation under aoi's bounding box block by
// block, mosaics the blocks and warps the result to dstCRS at dst.
func (c *Client) FetchElevation(ctx context.Context, aoi domain.AOI, dstCRS, dst string) error {
	merc, err := c.tools.ProjectAOI(aoi, ServiceCRS)
	if err != nil {
		return err
	}
	g := newGrid(merc.Bounds())
	if g.width == 0 || g.height == 0 {
		return fmt.Errorf("elevation for %s: bounding box under one pixel: %w", aoi.Name, domain.ErrEmptyAOI)
	}

	if err := os.MkdirAll(c.tmpDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	var blocks []string
	defer func() {
		for _, b := range blocks {
			os.Remove(b) //nolint:errcheck // best-effort cleanup
		}
	}()

	windows := g.windows(c.blockSize)
	c.logger.Info("fetching elevation", "aoi", aoi.Name, "width", g.width, "height", g.height, "blocks", len(windows))
	for _, w := range windows {
		path, err := c.fetchBlock(ctx, g, w)
		if path != "" {
			blocks = append(blocks, path)
		}
		if err != nil {
			return fmt.Errorf("elevation for %s: %w", aoi.Name, err)
		}
	}

	mosaic := filepath.Join(c.tmpDir, "dem-"+uuid.NewString()+".tif")
	defer os.Remove(mosaic) //nolint:errcheck // best-effort cleanup
	if err := c.tools.Mosaic(blocks, mosaic); err != nil {
		return err
	}

	opts := domain.ReprojectOptions{CRS: dstCRS, Resampling: domain.ResampleBilinear}
	if merc.Area() > largeAreaM2 {
		opts.Resolution = &domain.Resolution{X: coarseResolution, Y: coarseResolution}
	}
	return c.tools.Reproject(mosaic, dst, opts)
}

// fetchBlock downloads one window and rewrites it onto its slot in the grid,
// so the mosaic does not depend on the georeferencing the service returns.
func (c *Client) fetchBlock(ctx context.Context, g grid, w window) (string, error) {
	b := g.bounds(w)
	params := url.Values{
		"bbox":                 {fmt.Sprintf("%s,%s,%s,%s", ftoa(b.Min[0]), ftoa(b.Min[1]), ftoa(b.Max[0]), ftoa(b.Max[1]))},
		"bboxSR":               {"3857"},
		"imageSR":              {"3857"},
		"size":                 {fmt.Sprintf("%d,%d", w.cols, w.rows)},
		"format":               {"tiff"},
		"pixelType":            {"F32"},
		"noDataInterpretation": {"esriNoDataMatchAny"},
		"interpolation":        {"RSP_BilinearInterpolation"},
		"renderingRule":        {`{"rasterFunction":"Identity"}`},
		"f":                    {"image"},
	}

	body, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}

	path := filepath.Join(c.tmpDir, "dem-block-"+uuid.NewString()+".tif")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	r, err := c.tools.Open(path)
	if err != nil {
		return path, err
	}
	if rows, cols := r.Dims(); rows != w.rows || cols != w.cols {
		return path, fmt.Errorf("block at (%d,%d) is %dx%d, want %dx%d: %w", w.row, w.col, rows, cols, w.rows, w.cols, domain.ErrNetwork)
	}
	r.Transform = g.transform.Offset(w.row, w.col)
	r.CRS = ServiceCRS
	return path, c.tools.Write(path, r)
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	start := time.Now()
	body, err := c.get(ctx, fullURL)
	c.metrics.ElevationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ElevationRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.ElevationRequests.WithLabelValues("success").Inc()
	return body, nil
}

func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevation request: %w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read elevation response: %w: %w", domain.ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("3dep API error: status %d: %s: %w", resp.StatusCode, snippet(body), domain.ErrNetwork)
	}
	// The service reports some failures as a 200 with a JSON error body.
	if !isTIFF(body) {
		return nil, fmt.Errorf("3dep API returned a non-tiff body: %s: %w", snippet(body), domain.ErrNetwork)
	}
	return body, nil
}

func isTIFF(b []byte) bool {
	return bytes.HasPrefix(b, []byte("II*\x00")) || bytes.HasPrefix(b, []byte("MM\x00*")) ||
		bytes.HasPrefix(b, []byte("II+\x00")) || bytes.HasPrefix(b, []byte("MM\x00+"))
}

func snippet(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
