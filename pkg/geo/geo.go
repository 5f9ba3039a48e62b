// Package geo 提供签到地理围栏所需的球面距离计算。
package geo

import "math"

// EarthRadiusMeters 地球平均半径（米）
const EarthRadiusMeters = 6371000.0

// Point 经纬度坐标（度）
type Point struct {
	Lat float64
	Lon float64
}

// Valid 纬度 [-90,90]、经度 [-180,180] 且均为有限值
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Distance 返回两点之间的大圆距离（米），haversine 公式
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// DistanceMeters 距离四舍五入到整米
func DistanceMeters(a, b Point) int {
	return int(math.Round(Distance(a, b)))
}

// WithinRadius 判断 point 是否位于 origin 周围 radiusMeters 米内
// 边界按整米比较：恰好等于半径视为在范围内
func WithinRadius(origin Point, radiusMeters int, point Point) (bool, int) {
	d := DistanceMeters(origin, point)
	return d <= radiusMeters, d
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
