package rdb

import (
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	dbTypes "github.com/MaineK00n/vulstrack/pkg/db/common/types"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

type Config struct {
	Type    string
	Path    string
	Debug   bool
	Options []gorm.Option
}

type Connection struct {
	Config *Config

	conn *gorm.DB
}

func (c *Connection) Open() error {
	if c.Config == nil {
		return errors.New("connection config is not set")
	}

	var (
		dialector gorm.Dialector
		retries   uint64
	)
	switch c.Config.Type {
	case "sqlite3":
		dialector = sqlite.Open(c.Config.Path)
	case "mysql":
		dialector = mysql.Open(c.Config.Path)
		retries = 3
	case "postgres":
		dialector = postgres.Open(c.Config.Path)
		retries = 3
	default:
		return errors.Errorf("%s is not support rdb dbtype", c.Config.Type)
	}

	level := logger.Silent
	if c.Config.Debug {
		level = logger.Info
	}
	opts := append([]gorm.Option{&gorm.Config{Logger: logger.Default.LogMode(level)}}, c.Config.Options...)

	if err := backoff.Retry(func() error {
		db, err := gorm.Open(dialector, opts...)
		if err != nil {
			return err
		}
		c.conn = db
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries)); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (c *Connection) Close() error {
	if c.conn == nil {
		return nil
	}
	db, err := c.conn.DB()
	if err != nil {
		return errors.Wrap(err, "get *sql.DB")
	}
	return db.Close()
}

func (c *Connection) GetMetadata() (*dbTypes.Metadata, error) {
	var m metadataModel
	if err := c.conn.First(&m, metadataID).Error; err != nil {
		return nil, errors.Wrap(err, "select metadata")
	}
	return &dbTypes.Metadata{
		SchemaVersion: m.SchemaVersion,
		CreatedBy:     m.CreatedBy,
		LastModified:  m.LastModified,
	}, nil
}

func (c *Connection) PutMetadata(metadata dbTypes.Metadata) error {
	if err := c.conn.Save(&metadataModel{
		ID:            metadataID,
		SchemaVersion: metadata.SchemaVersion,
		CreatedBy:     metadata.CreatedBy,
		LastModified:  metadata.LastModified,
	}).Error; err != nil {
		return errors.Wrap(err, "save metadata")
	}
	return nil
}

func (c *Connection) PutFact(fact types.Fact) (bool, error) {
	if fact.BulletinID == "" || fact.CVEID == "" {
		return false, errors.Errorf("unexpected fact key. bulletin: %q, cve: %q", fact.BulletinID, fact.CVEID)
	}

	m := factToModel(fact)
	res := c.conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "insert %s %s", fact.BulletinID, fact.CVEID)
	}
	return res.RowsAffected > 0, nil
}

func (c *Connection) UpdateFact(bulletinID string, update dbTypes.FactUpdate) (int64, error) {
	if update.IsEmpty() {
		return 0, nil
	}

	m := map[string]any{}
	if update.Product != nil {
		m["produit_name"] = *update.Product
	}
	if update.Description != nil {
		m["description"] = *update.Description
	}
	if update.Risk != nil {
		m["risk"] = *update.Risk
	}
	if update.Mitigation != nil {
		m["mitigation"] = *update.Mitigation
	}
	if update.Reference != nil {
		m["reference"] = *update.Reference
	}

	res := c.conn.Model(&vulnerabilityModel{}).Where("id_bulletin = ?", bulletinID).Updates(m)
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "update vulnerabilities %s", bulletinID)
	}
	return res.RowsAffected, nil
}

func (c *Connection) PutTrackingRow(row types.TrackingRow) (bool, error) {
	if row.BulletinID == "" || row.CVEID == "" || row.Client == "" {
		return false, errors.Errorf("unexpected tracking key. bulletin: %q, cve: %q, client: %q", row.BulletinID, row.CVEID, row.Client)
	}
	if row.Status == "" {
		row.Status = types.StatusOpen
	}
	if row.TreatmentDate == "" {
		row.TreatmentDate = time.Now().Format(types.DateLayout)
	}

	m := trackingToModel(row)
	m.ID = 0
	res := c.conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "insert %s %s %s", row.BulletinID, row.CVEID, row.Client)
	}
	return res.RowsAffected > 0, nil
}

func (c *Connection) GetTrackingRow(id uint) (*types.TrackingRow, error) {
	var m trackingModel
	if err := c.conn.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(dbTypes.ErrNotFound, "tracking row %d", id)
		}
		return nil, errors.Wrapf(err, "select tracking row %d", id)
	}
	r := m.toTrackingRow()
	return &r, nil
}

func (c *Connection) UpdateTrackingRow(id uint, update dbTypes.TrackingUpdate) error {
	if _, err := c.GetTrackingRow(id); err != nil {
		return errors.Wrap(err, "get tracking row")
	}
	if update.IsEmpty() {
		return nil
	}

	if err := c.conn.Model(&trackingModel{}).Where("id = ?", id).Updates(trackingUpdateColumns(update)).Error; err != nil {
		return errors.Wrapf(err, "update tracking row %d", id)
	}
	return nil
}

func (c *Connection) UpdateGroup(bulletinID, client string, update dbTypes.TrackingUpdate) (int64, error) {
	if update.IsEmpty() {
		return 0, nil
	}

	res := c.conn.Model(&trackingModel{}).Where("id_bulletin = ? AND client = ?", bulletinID, client).Updates(trackingUpdateColumns(update))
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "update tracking rows %s %s", bulletinID, client)
	}
	return res.RowsAffected, nil
}

func (c *Connection) DeleteTrackingRow(id uint) error {
	res := c.conn.Delete(&trackingModel{}, id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete tracking row %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(dbTypes.ErrNotFound, "tracking row %d", id)
	}
	return nil
}

func (c *Connection) DeleteGroup(bulletinID, client string) (int64, error) {
	res := c.conn.Where("id_bulletin = ? AND client = ?", bulletinID, client).Delete(&trackingModel{})
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "delete tracking rows %s %s", bulletinID, client)
	}
	return res.RowsAffected, nil
}

const joinedColumns = `t.id, t.id_bulletin, t.cve_id, t.client,
	COALESCE(t.status, '') AS status,
	COALESCE(t.responsable_resolution, '') AS responsable_resolution,
	COALESCE(t.date_de_traitement, '') AS date_de_traitement,
	COALESCE(t.comment, '') AS comment,
	CASE WHEN v.id_bulletin IS NULL THEN 0 ELSE 1 END AS fact_found,
	COALESCE(v.produit_name, '') AS produit_name,
	COALESCE(v.date_de_sortie, '') AS date_de_sortie,
	COALESCE(v.description, '') AS description,
	COALESCE(v.niveau_de_risque, '') AS niveau_de_risque,
	COALESCE(v.severity, '') AS severity,
	COALESCE(v.risk, '') AS risk,
	COALESCE(v.processing_time, 0) AS processing_time,
	COALESCE(v.mitigation, '') AS mitigation,
	COALESCE(v.reference, '') AS reference,
	COALESCE(v.date_de_notification, '') AS date_de_notification`

func (c *Connection) GetJoinedRows(filter dbTypes.Filter) ([]types.JoinedRow, error) {
	q := c.conn.
		Table("client_vuln_tracking AS t").
		Select(joinedColumns).
		Joins("LEFT JOIN vulnerabilities AS v ON t.id_bulletin = v.id_bulletin AND t.cve_id = v.cve_id")

	if client := strings.TrimSpace(filter.Client); client != "" {
		q = q.Where("t.client = ?", client)
	}

	start, end := strings.TrimSpace(filter.StartDate), strings.TrimSpace(filter.EndDate)
	switch {
	case start != "" && end != "":
		q = q.Where("v.date_de_sortie BETWEEN ? AND ?", start, end)
	case start != "":
		q = q.Where("v.date_de_sortie >= ?", start)
	case end != "":
		q = q.Where("v.date_de_sortie <= ?", end)
	}

	if len(filter.Months) > 0 {
		q = q.Where("SUBSTR(v.date_de_sortie, 1, 7) IN ?", filter.Months)
	}

	var ms []joinedModel
	if err := q.Order("date_de_sortie DESC, t.id_bulletin, t.client, t.cve_id, t.id").Scan(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "select joined tracking rows")
	}

	rows := make([]types.JoinedRow, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, m.toJoinedRow())
	}
	return rows, nil
}

func (c *Connection) GetTrackedClients() ([]string, error) {
	var cs []string
	if err := c.conn.Model(&trackingModel{}).Distinct("client").Order("client").Pluck("client", &cs).Error; err != nil {
		return nil, errors.Wrap(err, "select tracked clients")
	}
	return cs, nil
}

func (c *Connection) RolloverTreatmentDates(date string) (int64, error) {
	ongoing := make([]string, 0, len(types.OngoingStatuses()))
	for _, s := range types.OngoingStatuses() {
		ongoing = append(ongoing, string(s))
	}

	res := c.conn.Model(&trackingModel{}).Where("status IN ?", ongoing).Update("date_de_traitement", date)
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "update treatment dates to %s", date)
	}
	return res.RowsAffected, nil
}

func (c *Connection) PutClient(name string) (*types.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("client name is empty")
	}

	m := clientModel{Name: name}
	if err := c.conn.Create(&m).Error; err != nil {
		return nil, errors.Wrapf(err, "insert client %s", name)
	}
	return &types.Client{ID: m.ID, Name: m.Name}, nil
}

func (c *Connection) GetClients() ([]types.Client, error) {
	var ms []clientModel
	if err := c.conn.Order("name").Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "select clients")
	}

	cs := make([]types.Client, 0, len(ms))
	for _, m := range ms {
		cs = append(cs, types.Client{ID: m.ID, Name: m.Name})
	}
	return cs, nil
}

func (c *Connection) UpdateClient(id uint, name string) error {
	res := c.conn.Model(&clientModel{}).Where("id = ?", id).Update("name", strings.TrimSpace(name))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update client %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(dbTypes.ErrNotFound, "client %d", id)
	}
	return nil
}

func (c *Connection) DeleteClient(id uint) error {
	return c.conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", id).Delete(&productModel{}).Error; err != nil {
			return errors.Wrapf(err, "delete products of client %d", id)
		}
		res := tx.Delete(&clientModel{}, id)
		if res.Error != nil {
			return errors.Wrapf(res.Error, "delete client %d", id)
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(dbTypes.ErrNotFound, "client %d", id)
		}
		return nil
	})
}

func (c *Connection) PutProduct(product types.Product) (*types.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, errors.New("product name is empty")
	}

	m := productToModel(product)
	m.ID = 0
	if err := c.conn.Create(&m).Error; err != nil {
		return nil, errors.Wrapf(err, "insert product %s", product.Name)
	}
	p := m.toProduct()
	return &p, nil
}

func (c *Connection) GetProducts(clientID *uint) ([]types.Product, error) {
	q := c.conn.Order("name")
	if clientID != nil {
		q = q.Where("client_id = ?", *clientID)
	}

	var ms []productModel
	if err := q.Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "select products")
	}

	ps := make([]types.Product, 0, len(ms))
	for _, m := range ms {
		ps = append(ps, m.toProduct())
	}
	return ps, nil
}

func (c *Connection) UpdateProduct(product types.Product) error {
	m := productToModel(product)
	res := c.conn.Model(&productModel{}).Where("id = ?", product.ID).Updates(map[string]any{
		"name":                   m.Name,
		"client_id":              m.ClientID,
		"responsible_resolution": m.ResponsibleResolution,
	})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update product %d", product.ID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(dbTypes.ErrNotFound, "product %d", product.ID)
	}
	return nil
}

func (c *Connection) DeleteProduct(id uint) error {
	res := c.conn.Delete(&productModel{}, id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete product %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(dbTypes.ErrNotFound, "product %d", id)
	}
	return nil
}

func (c *Connection) GetClientsWithProducts() (map[string][]types.Product, error) {
	cs, err := c.GetClients()
	if err != nil {
		return nil, errors.Wrap(err, "get clients")
	}
	ps, err := c.GetProducts(nil)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	names := make(map[uint]string, len(cs))
	m := make(map[string][]types.Product, len(cs))
	for _, cl := range cs {
		names[cl.ID] = cl.Name
		m[cl.Name] = []types.Product{}
	}
	for _, p := range ps {
		n, ok := names[p.ClientID]
		if !ok {
			continue
		}
		m[n] = append(m[n], p)
	}
	return m, nil
}

func (c *Connection) DeleteAll() error {
	if err := c.conn.Migrator().DropTable(models()...); err != nil {
		return errors.Wrap(err, "drop tables")
	}
	return nil
}

func (c *Connection) Initialize() error {
	if err := c.conn.AutoMigrate(models()...); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}
