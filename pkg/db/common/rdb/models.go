package rdb

import (
	"time"

	dbTypes "github.com/MaineK00n/vulstrack/pkg/db/common/types"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

const metadataID uint = 1

type metadataModel struct {
	ID            uint `gorm:"primaryKey"`
	SchemaVersion uint
	CreatedBy     string
	LastModified  time.Time
}

func (metadataModel) TableName() string { return "metadata" }

// vulnerabilities: one row per (bulletin, cve), shared across clients
type vulnerabilityModel struct {
	BulletinID       string `gorm:"column:id_bulletin;primaryKey;size:191"`
	CVEID            string `gorm:"column:cve_id;primaryKey;size:191"`
	Product          string `gorm:"column:produit_name"`
	ReleaseDate      string `gorm:"column:date_de_sortie;size:32;index"`
	Description      string `gorm:"column:description;type:text"`
	RiskLevel        string `gorm:"column:niveau_de_risque;default:Fort"`
	CVSSScore        string `gorm:"column:severity"`
	Risk             string `gorm:"column:risk;default:Important"`
	ProcessingTime   int    `gorm:"column:processing_time"`
	Mitigation       string `gorm:"column:mitigation;type:text"`
	Reference        string `gorm:"column:reference;type:text"`
	NotificationDate string `gorm:"column:date_de_notification;size:32"`
}

func (vulnerabilityModel) TableName() string { return "vulnerabilities" }

// client_vuln_tracking: one row per (bulletin, cve, client)
type trackingModel struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	BulletinID      string `gorm:"column:id_bulletin;size:191;uniqueIndex:idx_tracking_key,priority:1"`
	CVEID           string `gorm:"column:cve_id;size:191;uniqueIndex:idx_tracking_key,priority:2"`
	Client          string `gorm:"column:client;size:191;uniqueIndex:idx_tracking_key,priority:3;index"`
	Status          string `gorm:"column:status;size:64;default:Open;index"`
	ResponsibleTeam string `gorm:"column:responsable_resolution"`
	TreatmentDate   string `gorm:"column:date_de_traitement;size:32"`
	Comment         string `gorm:"column:comment;type:text"`
}

func (trackingModel) TableName() string { return "client_vuln_tracking" }

type clientModel struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"column:name;size:191;uniqueIndex;not null"`
}

func (clientModel) TableName() string { return "clients" }

type productModel struct {
	ID                    uint   `gorm:"primaryKey;autoIncrement"`
	Name                  string `gorm:"column:name;not null"`
	ClientID              uint   `gorm:"column:client_id;index"`
	ResponsibleResolution string `gorm:"column:responsible_resolution"`
}

func (productModel) TableName() string { return "products" }

func models() []any {
	return []any{&metadataModel{}, &vulnerabilityModel{}, &trackingModel{}, &clientModel{}, &productModel{}}
}

type joinedModel struct {
	ID               uint   `gorm:"column:id"`
	BulletinID       string `gorm:"column:id_bulletin"`
	CVEID            string `gorm:"column:cve_id"`
	Client           string `gorm:"column:client"`
	Status           string `gorm:"column:status"`
	ResponsibleTeam  string `gorm:"column:responsable_resolution"`
	TreatmentDate    string `gorm:"column:date_de_traitement"`
	Comment          string `gorm:"column:comment"`
	FactFound        int    `gorm:"column:fact_found"`
	Product          string `gorm:"column:produit_name"`
	ReleaseDate      string `gorm:"column:date_de_sortie"`
	Description      string `gorm:"column:description"`
	RiskLevel        string `gorm:"column:niveau_de_risque"`
	CVSSScore        string `gorm:"column:severity"`
	Risk             string `gorm:"column:risk"`
	ProcessingTime   int    `gorm:"column:processing_time"`
	Mitigation       string `gorm:"column:mitigation"`
	Reference        string `gorm:"column:reference"`
	NotificationDate string `gorm:"column:date_de_notification"`
}

func (m joinedModel) toJoinedRow() types.JoinedRow {
	r := types.JoinedRow{
		TrackingRow: types.TrackingRow{
			ID:              m.ID,
			BulletinID:      m.BulletinID,
			CVEID:           m.CVEID,
			Client:          m.Client,
			Status:          types.Status(m.Status),
			ResponsibleTeam: m.ResponsibleTeam,
			TreatmentDate:   m.TreatmentDate,
			Comment:         m.Comment,
		},
	}
	if m.FactFound == 0 {
		return r
	}
	r.Fact = &types.Fact{
		BulletinID:       m.BulletinID,
		CVEID:            m.CVEID,
		Product:          m.Product,
		ReleaseDate:      m.ReleaseDate,
		Description:      m.Description,
		RiskLevel:        m.RiskLevel,
		CVSSScore:        m.CVSSScore,
		Risk:             m.Risk,
		ProcessingTime:   m.ProcessingTime,
		Mitigation:       m.Mitigation,
		Reference:        m.Reference,
		NotificationDate: m.NotificationDate,
	}
	return r
}

func factToModel(f types.Fact) vulnerabilityModel {
	return vulnerabilityModel{
		BulletinID:       f.BulletinID,
		CVEID:            f.CVEID,
		Product:          f.Product,
		ReleaseDate:      f.ReleaseDate,
		Description:      f.Description,
		RiskLevel:        f.RiskLevel,
		CVSSScore:        f.CVSSScore,
		Risk:             f.Risk,
		ProcessingTime:   f.ProcessingTime,
		Mitigation:       f.Mitigation,
		Reference:        f.Reference,
		NotificationDate: f.NotificationDate,
	}
}

func trackingToModel(r types.TrackingRow) trackingModel {
	return trackingModel{
		ID:              r.ID,
		BulletinID:      r.BulletinID,
		CVEID:           r.CVEID,
		Client:          r.Client,
		Status:          string(r.Status),
		ResponsibleTeam: r.ResponsibleTeam,
		TreatmentDate:   r.TreatmentDate,
		Comment:         r.Comment,
	}
}

func (m trackingModel) toTrackingRow() types.TrackingRow {
	return types.TrackingRow{
		ID:              m.ID,
		BulletinID:      m.BulletinID,
		CVEID:           m.CVEID,
		Client:          m.Client,
		Status:          types.Status(m.Status),
		ResponsibleTeam: m.ResponsibleTeam,
		TreatmentDate:   m.TreatmentDate,
		Comment:         m.Comment,
	}
}

func trackingUpdateColumns(update dbTypes.TrackingUpdate) map[string]any {
	m := map[string]any{}
	if update.Status != nil {
		m["status"] = string(*update.Status)
	}
	if update.Comment != nil {
		m["comment"] = *update.Comment
	}
	if update.TreatmentDate != nil {
		m["date_de_traitement"] = *update.TreatmentDate
	}
	if update.ResponsibleTeam != nil {
		m["responsable_resolution"] = *update.ResponsibleTeam
	}
	return m
}

func productToModel(p types.Product) productModel {
	rr := p.ResponsibleResolution
	if rr == "" {
		rr = types.DefaultResponsibleTeam
	}
	return productModel{
		ID:                    p.ID,
		Name:                  p.Name,
		ClientID:              p.ClientID,
		ResponsibleResolution: rr,
	}
}

func (m productModel) toProduct() types.Product {
	return types.Product{
		ID:                    m.ID,
		Name:                  m.Name,
		ClientID:              m.ClientID,
		ResponsibleResolution: m.ResponsibleResolution,
	}
}
