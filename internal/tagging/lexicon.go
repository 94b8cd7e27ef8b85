// Copyright 2025 MediaStore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tagging

// The brand publishes in Korean with English loanwords mixed in, so every
// keyword group carries both scripts. Matching is plain substring over
// lowercased text; Korean needs no case folding.

// GolfKeywords mark golf-related content.
var GolfKeywords = []string{
	"골프", "드라이버", "클럽", "필드", "라운드", "스윙", "비거리", "타격", "퍼팅",
	"golf", "driver", "club", "field", "round", "swing", "distance", "putting",
}

// ProductKeywords mark product and shopping content.
var ProductKeywords = []string{
	"제품", "상품", "구매", "가격", "리뷰", "후기", "추천", "비교",
	"product", "buy", "price", "review", "recommend", "compare",
}

// EventKeywords mark campaign and promotion content.
var EventKeywords = []string{
	"이벤트", "프로모션", "할인", "특가", "세일", "경품", "증정",
	"event", "promotion", "sale", "discount", "gift", "prize",
}

// Theme labels derived from the keyword groups.
const (
	ThemeGolf    = "golf"
	ThemeProduct = "product"
	ThemeEvent   = "event"
)

// CategoryThemes maps the dashboard's editorial categories to themes.
var CategoryThemes = map[string][]string{
	"골프 정보":      {"golf", "instruction"},
	"고객 후기":      {"customer", "review"},
	"이벤트 & 프로모션": {"event", "promotion"},
	"제품 소개":      {"product", "golf"},
	"골프장 정보":     {"golf", "course"},
}
