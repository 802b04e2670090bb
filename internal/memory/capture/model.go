package capture

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bombwatch/extension/internal/entity"
	"github.com/bombwatch/extension/internal/memory"
	"github.com/bombwatch/extension/internal/schema"
)

// Capture is a frozen copy of the remote memory and entity directory taken at one tick.
type Capture struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	Label     string
	GameTime  float32
	// Layout the capture was taken with, as JSON. Empty means schema.DefaultLayout.
	Layout   datatypes.JSON
	Regions  []Region    `gorm:"foreignKey:CaptureID;constraint:OnDelete:CASCADE"`
	Entities []EntityRow `gorm:"foreignKey:CaptureID;constraint:OnDelete:CASCADE"`
}

// Region is one captured memory block. Data is stored zstd-compressed.
type Region struct {
	ID        uint   `gorm:"primarykey"`
	CaptureID uint   `gorm:"index"`
	Base      uint64 `gorm:"index"`
	Size      int
	Data      []byte `gorm:"-"`
	Blob      []byte
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

func (r *Region) BeforeSave(tx *gorm.DB) error {
	r.Size = len(r.Data)
	r.Blob = encoder.EncodeAll(r.Data, make([]byte, 0, len(r.Data)/4))
	return nil
}

func (r *Region) AfterFind(tx *gorm.DB) error {
	data, err := decoder.DecodeAll(r.Blob, make([]byte, 0, r.Size))
	if err != nil {
		return fmt.Errorf("region 0x%X: %w", r.Base, err)
	}
	if len(data) != r.Size {
		return fmt.Errorf("region 0x%X: decoded %d bytes, want %d", r.Base, len(data), r.Size)
	}
	r.Data = data
	return nil
}

// EntityRow is one entity directory slot.
type EntityRow struct {
	ID         uint   `gorm:"primarykey"`
	CaptureID  uint   `gorm:"index"`
	Index      uint32 `gorm:"column:slot"`
	Generation uint32
	ClassInfo  uint64
	Address    uint64
}

// New builds a capture from the given image and directory.
func New(label string, img *memory.Image, dir entity.Directory, gameTime float32, layout schema.Layout) (*Capture, error) {
	raw, err := json.Marshal(layout)
	if err != nil {
		return nil, fmt.Errorf("encoding layout: %w", err)
	}

	c := &Capture{
		Label:    label,
		GameTime: gameTime,
		Layout:   datatypes.JSON(raw),
	}
	for _, r := range img.Regions() {
		c.Regions = append(c.Regions, Region{Base: r.Base, Data: r.Data})
	}
	for _, id := range dir.Entities() {
		c.Entities = append(c.Entities, EntityRow{
			Index:      id.Index,
			Generation: id.Generation,
			ClassInfo:  id.ClassInfo,
			Address:    id.Address,
		})
	}
	return c, nil
}

// Image rebuilds the captured address space.
func (c *Capture) Image() *memory.Image {
	img := memory.NewImage()
	for _, r := range c.Regions {
		img.Map(r.Base, r.Data)
	}
	return img
}

// Table rebuilds the captured entity directory.
func (c *Capture) Table() *entity.Table {
	t := entity.NewTable()
	for _, row := range c.Entities {
		t.Put(entity.Identity{
			Index:      row.Index,
			Generation: row.Generation,
			ClassInfo:  row.ClassInfo,
			Address:    row.Address,
		})
	}
	return t
}

// SchemaLayout decodes the stored layout, falling back to schema.DefaultLayout.
func (c *Capture) SchemaLayout() (schema.Layout, error) {
	layout := schema.DefaultLayout()
	if len(c.Layout) == 0 {
		return layout, nil
	}
	if err := json.Unmarshal(c.Layout, &layout); err != nil {
		return schema.Layout{}, fmt.Errorf("decoding capture layout: %w", err)
	}
	return layout, nil
}
