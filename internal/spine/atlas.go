package spine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

// FetchFunc returns the bytes stored at path.
type FetchFunc func(ctx context.Context, path string) ([]byte, error)

type AtlasPage struct {
	Name             string
	W, H             int
	Format           string
	WFilter, HFilter string
	Repeat           string
	PMA              bool
	Image            image.Image
}

type AtlasRegion struct {
	Name         string
	Page         *AtlasPage
	Degrees      int // 0 or 90
	X, Y         int
	W, H         int // unrotated size
	OrigW, OrigH int
	OrigX, OrigY int // whitespace stripped on the left and bottom
	Index        int
}

// Bounds is the packed rectangle inside the page, in pixels.
func (r *AtlasRegion) Bounds() (u, v, u2, v2 float32) {
	w, h := r.W, r.H
	if r.Degrees == 90 {
		w, h = h, w
	}
	return float32(r.X), float32(r.Y), float32(r.X + w), float32(r.Y + h)
}

type Atlas struct {
	Pages   []*AtlasPage
	Regions []*AtlasRegion
}

func (a *Atlas) FindRegion(name string) *AtlasRegion {
	for _, item := range a.Regions {
		if item.Name == name {
			return item
		}
	}
	return nil
}

// ParseAtlas reads the libgdx text format. Page images are not loaded.
func ParseAtlas(data []byte) (*Atlas, error) {
	res := &Atlas{}
	var page *AtlasPage
	var region *AtlasRegion
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			page, region = nil, nil
			continue
		}
		if page == nil {
			page = &AtlasPage{Name: line}
			res.Pages = append(res.Pages, page)
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			region = &AtlasRegion{Name: line, Page: page, Index: -1}
			res.Regions = append(res.Regions, region)
			continue
		}
		key = strings.TrimSpace(key)
		items := parseStrList(val)
		var err error
		if region == nil {
			err = parsePageField(page, key, items)
		} else {
			err = parseRegionField(region, key, items)
		}
		if err != nil {
			return nil, fmt.Errorf("spine: atlas line %d: %w", i+1, err)
		}
	}
	for _, item := range res.Regions {
		if item.OrigW == 0 && item.OrigH == 0 {
			item.OrigW, item.OrigH = item.W, item.H
		}
	}
	return res, nil
}

func parsePageField(page *AtlasPage, key string, items []string) error {
	switch key {
	case "size":
		size, err := parseIntList(items, 2)
		if err != nil {
			return err
		}
		page.W, page.H = size[0], size[1]
	case "format":
		page.Format = items[0]
	case "filter":
		page.WFilter = items[0]
		page.HFilter = items[len(items)-1]
	case "repeat":
		page.Repeat = items[0]
	case "pma":
		page.PMA = items[0] == "true"
	}
	return nil
}

func parseRegionField(region *AtlasRegion, key string, items []string) error {
	var err error
	var vals []int
	switch key {
	case "rotate":
		switch items[0] {
		case "true":
			region.Degrees = 90
		case "false":
			region.Degrees = 0
		default:
			region.Degrees, err = strconv.Atoi(items[0])
		}
	case "xy":
		if vals, err = parseIntList(items, 2); err == nil {
			region.X, region.Y = vals[0], vals[1]
		}
	case "size":
		if vals, err = parseIntList(items, 2); err == nil {
			region.W, region.H = vals[0], vals[1]
		}
	case "bounds":
		if vals, err = parseIntList(items, 4); err == nil {
			region.X, region.Y, region.W, region.H = vals[0], vals[1], vals[2], vals[3]
		}
	case "orig":
		if vals, err = parseIntList(items, 2); err == nil {
			region.OrigW, region.OrigH = vals[0], vals[1]
		}
	case "offset":
		if vals, err = parseIntList(items, 2); err == nil {
			region.OrigX, region.OrigY = vals[0], vals[1]
		}
	case "offsets":
		if vals, err = parseIntList(items, 4); err == nil {
			region.OrigX, region.OrigY, region.OrigW, region.OrigH = vals[0], vals[1], vals[2], vals[3]
		}
	case "index":
		if vals, err = parseIntList(items, 1); err == nil {
			region.Index = vals[0]
		}
	}
	if err != nil {
		return fmt.Errorf("region %s %s: %w", region.Name, key, err)
	}
	if region.Degrees != 0 && region.Degrees != 90 {
		return fmt.Errorf("region %s: unsupported rotation %d", region.Name, region.Degrees)
	}
	return nil
}

func parseStrList(line string) []string {
	items := strings.Split(line, ",")
	res := make([]string, 0, len(items))
	for _, item := range items {
		res = append(res, strings.TrimSpace(item))
	}
	return res
}

func parseIntList(items []string, count int) ([]int, error) {
	if len(items) < count {
		return nil, fmt.Errorf("want %d values, got %d", count, len(items))
	}
	res := make([]int, 0, count)
	for _, item := range items[:count] {
		val, err := strconv.Atoi(item)
		if err != nil {
			return nil, err
		}
		res = append(res, val)
	}
	return res, nil
}

// ResolvePath resolves name relative to the file at base, which is either a
// URL or a slash separated path.
func ResolvePath(base, name string) string {
	if strings.Contains(base, "://") {
		baseURL, err := url.Parse(base)
		if err == nil {
			if ref, err := url.Parse(name); err == nil {
				return baseURL.ResolveReference(ref).String()
			}
		}
	}
	return path.Join(path.Dir(base), name)
}

// LoadTextureAtlas fetches and parses the atlas at atlasPath, then fetches
// and decodes its pages concurrently.
func LoadTextureAtlas(ctx context.Context, atlasPath string, fetch FetchFunc) (*Atlas, error) {
	data, err := fetch(ctx, atlasPath)
	if err != nil {
		return nil, err
	}
	atlas, err := ParseAtlas(data)
	if err != nil {
		return nil, err
	}
	group, ctx := errgroup.WithContext(ctx)
	for _, page := range atlas.Pages {
		group.Go(func() error {
			pagePath := ResolvePath(atlasPath, page.Name)
			bs, err := fetch(ctx, pagePath)
			if err != nil {
				return err
			}
			img, _, err := image.Decode(bytes.NewReader(bs))
			if err != nil {
				return fmt.Errorf("spine: decode page %s: %w", pagePath, err)
			}
			page.Image = img
			if page.W == 0 || page.H == 0 {
				page.W, page.H = img.Bounds().Dx(), img.Bounds().Dy()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return atlas, nil
}

// LoadSkeletonData fetches a binary skeleton and binds it to atlas.
func LoadSkeletonData(ctx context.Context, skelPath string, atlas *Atlas, fetch FetchFunc) (*SkeletonData, error) {
	data, err := fetch(ctx, skelPath)
	if err != nil {
		return nil, err
	}
	res, err := ParseSkeletonData(data, atlas)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", skelPath, err)
	}
	return res, nil
}

func (d *SkeletonData) bindAtlas(atlas *Atlas) error {
	skins := append([]*Skin{d.DefaultSkin}, d.Skins...)
	for _, skin := range skins {
		for _, attachment := range skin.Attachments {
			if attachment.Type != AttachmentRegion && attachment.Type != AttachmentMesh {
				continue
			}
			region := atlas.FindRegion(attachment.Path)
			if region == nil {
				return fmt.Errorf("spine: region not found in atlas: %s (attachment %s)", attachment.Path, attachment.Name)
			}
			attachment.Region = region
			if attachment.Type == AttachmentRegion {
				attachment.updateOffsets()
				attachment.updateRegionUVs()
			} else {
				attachment.updateMeshUVs()
			}
		}
	}
	return nil
}

func (a *Attachment) updateOffsets() {
	region := a.Region
	width, height := a.Size.X(), a.Size.Y()
	scaleX, scaleY := a.Scale.X(), a.Scale.Y()
	regionScaleX := width / float32(region.OrigW) * scaleX
	regionScaleY := height / float32(region.OrigH) * scaleY
	localX := -width/2*scaleX + float32(region.OrigX)*regionScaleX
	localY := -height/2*scaleY + float32(region.OrigY)*regionScaleY
	localX2 := localX + float32(region.W)*regionScaleX
	localY2 := localY + float32(region.H)*regionScaleY
	cos, sin := cosDeg(a.Rotate), sinDeg(a.Rotate)
	x, y := a.Pos.X(), a.Pos.Y()
	corner := func(lx, ly float32) mgl32.Vec2 {
		return mgl32.Vec2{lx*cos - ly*sin + x, ly*cos + lx*sin + y}
	}
	a.Offsets = [4]mgl32.Vec2{
		corner(localX, localY),
		corner(localX, localY2),
		corner(localX2, localY2),
		corner(localX2, localY),
	}
}

func (a *Attachment) updateRegionUVs() {
	u, v, u2, v2 := a.Region.Bounds()
	if a.Region.Degrees == 90 {
		a.UVs = []mgl32.Vec2{{u2, v2}, {u, v2}, {u, v}, {u2, v}}
		return
	}
	a.UVs = []mgl32.Vec2{{u, v2}, {u, v}, {u2, v}, {u2, v2}}
}

func (a *Attachment) updateMeshUVs() {
	region := a.Region
	u, v, _, _ := region.Bounds()
	a.UVs = make([]mgl32.Vec2, len(a.RegionUVs))
	if region.Degrees == 90 {
		u -= float32(region.OrigH - region.OrigY - region.H)
		v -= float32(region.OrigW - region.OrigX - region.W)
		width, height := float32(region.OrigH), float32(region.OrigW)
		for i, uv := range a.RegionUVs {
			a.UVs[i] = mgl32.Vec2{u + uv.Y()*width, v + (1-uv.X())*height}
		}
		return
	}
	u -= float32(region.OrigX)
	v -= float32(region.OrigH - region.OrigY - region.H)
	width, height := float32(region.OrigW), float32(region.OrigH)
	for i, uv := range a.RegionUVs {
		a.UVs[i] = mgl32.Vec2{u + uv.X()*width, v + uv.Y()*height}
	}
}
