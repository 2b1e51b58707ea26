package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

// SiteStore 站点读取
type SiteStore interface {
	GetSite(ctx context.Context, siteID int64) (*models.Site, error)
}

// DayStore 站点级日聚合读取
type DayStore interface {
	ListBySiteAndDayRange(ctx context.Context, siteID int64, fromDay, toDay string) ([]*models.ReadingDay, error)
}

// DayMeterStore 计量点级日聚合读取
type DayMeterStore interface {
	ListBySiteAndDayRange(ctx context.Context, siteID int64, fromDay, toDay string) ([]*models.ReadingDayMeter, error)
}

// Service 月度报表导出
type Service struct {
	sites     SiteStore
	days      DayStore
	dayMeters DayMeterStore
	logger    *zap.Logger
}

// NewService 创建报表服务
func NewService(sites SiteStore, days DayStore, dayMeters DayMeterStore, logger *zap.Logger) *Service {
	return &Service{sites: sites, days: days, dayMeters: dayMeters, logger: logger}
}

// BuildMonthlyWorkbook 生成站点某月的 xlsx 报表
// month 形如 "2026-08"；两个工作表：站点日汇总、分计量点日汇总
func (s *Service) BuildMonthlyWorkbook(ctx context.Context, siteID int64, month string) (*excelize.File, error) {
	if siteID <= 0 {
		return nil, fmt.Errorf("site_id is required: %w", models.ErrInvalidArgument)
	}
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q: %w", month, models.ErrInvalidArgument)
	}
	fromDay := start.Format("2006-01-02")
	toDay := start.AddDate(0, 1, -1).Format("2006-01-02")

	site, err := s.sites.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	days, err := s.days.ListBySiteAndDayRange(ctx, siteID, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	meterDays, err := s.dayMeters.ListBySiteAndDayRange(ctx, siteID, fromDay, toDay)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()

	const dailySheet = "Daily"
	f.SetSheetName(f.GetSheetName(0), dailySheet)
	dailyHeader := []interface{}{"Day", "Energy (kWh)", "Max Power (kW)", "Last Sample"}
	if err := f.SetSheetRow(dailySheet, "A1", &dailyHeader); err != nil {
		return nil, fmt.Errorf("failed to write daily header: %w", err)
	}
	totalEnergy := 0.0
	for i, d := range days {
		lastSample := ""
		if d.LastSampleAt != nil {
			lastSample = d.LastSampleAt.Format("2006-01-02 15:04:05")
		}
		row := []interface{}{d.Day, d.EnergyTodayKwh, d.MaxPowerKw, lastSample}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(dailySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write daily row: %w", err)
		}
		totalEnergy += d.EnergyTodayKwh
	}
	totalRow := []interface{}{"Total", totalEnergy, "", ""}
	totalCell := fmt.Sprintf("A%d", len(days)+2)
	if err := f.SetSheetRow(dailySheet, totalCell, &totalRow); err != nil {
		return nil, fmt.Errorf("failed to write total row: %w", err)
	}

	const meterSheet = "Meters"
	if _, err := f.NewSheet(meterSheet); err != nil {
		return nil, fmt.Errorf("failed to create meter sheet: %w", err)
	}
	meterHeader := []interface{}{"Day", "Meter", "AC Active (kWh)", "AC Export (kWh)", "AC Import (kWh)", "DC (kWh)", "Max AC Power (kW)"}
	if err := f.SetSheetRow(meterSheet, "A1", &meterHeader); err != nil {
		return nil, fmt.Errorf("failed to write meter header: %w", err)
	}
	for i, m := range meterDays {
		row := []interface{}{m.Day, string(m.MeterKind), m.ACActiveEnergyKwh, m.ACExportEnergyKwh, m.ACImportEnergyKwh, m.DCEnergyKwh, m.MaxACPowerKw}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(meterSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write meter row: %w", err)
		}
	}

	s.logger.Info("monthly report built",
		zap.Int64("site_id", siteID),
		zap.String("site", site.Name),
		zap.String("month", month),
		zap.Int("days", len(days)),
		zap.Int("meter_days", len(meterDays)))
	return f, nil
}
