// internal/database/postgres.go
package database

import (
	"errors"
	"fmt"

	"gantry-control/internal/config"
	"gantry-control/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	// 샘플 레시피 생성 (개발용)
	if err := SeedRecipes(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate 테이블 마이그레이션
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ParameterRecipe{}, // 공정 레시피
		&models.Result{},          // 작업 결과
		&models.AlarmLog{},        // 축 알람 (과부하/과열)
		&models.ErrorLog{},        // 시퀀스 오류
		&models.ScadaData{},       // 주기 수집 데이터
		&models.SafetyEvent{},     // 안전/모션 이벤트
	)
}

// SampleRecipes 기본 레시피
func SampleRecipes() []models.ParameterRecipe {
	return []models.ParameterRecipe{
		{RecipeName: "Recipe1", ServoPosition: 100.0, VfdSpeed: 50, MarkingParameters: "Param1"},
		{RecipeName: "Recipe2", ServoPosition: 200.0, VfdSpeed: 75, MarkingParameters: "Param2"},
	}
}

// SeedRecipes inserts the sample recipes that are not present yet.
func SeedRecipes(db *gorm.DB) error {
	for _, recipe := range SampleRecipes() {
		var existing models.ParameterRecipe
		err := db.Where("recipe_name = ?", recipe.RecipeName).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&recipe).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
