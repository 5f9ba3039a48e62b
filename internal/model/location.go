package model

// DefaultRadiusMeters 地点未设置半径时的围栏半径
const DefaultRadiusMeters = 100

// Location 上课地点表，对应 locations，经纬度与半径构成签到围栏
type Location struct {
	LocationID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"location_id"`
	Name       string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Address    string  `gorm:"type:varchar(200)"                              json:"address,omitempty"`
	Latitude   float64 `gorm:"type:double precision;not null"                 json:"latitude"`
	Longitude  float64 `gorm:"type:double precision;not null"                 json:"longitude"`
	RadiusM    int     `gorm:"not null;default:100"                           json:"radius_m"`
	IsActive   bool    `gorm:"not null;default:true"                          json:"is_active"`
	SoftDeleteModel
}

// TableName 指定表名
func (Location) TableName() string { return "locations" }
