package model_test

import (
	"testing"

	model "github.com/okian/bareme/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestSkillPrefixes(t *testing.T) {
	convey.Convey("Given a Skill", t, func() {
		convey.Convey("When it has no pillar", func() {
			skill := model.Skill{Level: "Maîtrise fragile", Coefficient: 1}

			convey.Convey("Then it should have no prefixes", func() {
				convey.So(skill.Prefixes(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When its pillar has an empty prefix list", func() {
			skill := model.Skill{Pillar: &model.Pillar{Name: "Langages"}}

			convey.Convey("Then it should have no prefixes", func() {
				convey.So(skill.Prefixes(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When its pillar mixes empty and non-empty prefixes", func() {
			skill := model.Skill{Pillar: &model.Pillar{Prefixes: []string{"", "D1", "", "D2"}}}

			convey.Convey("Then only the non-empty ones should remain, in order", func() {
				convey.So(skill.Prefixes(), convey.ShouldResemble, []string{"D1", "D2"})
			})
		})

		convey.Convey("When a prefix is repeated", func() {
			skill := model.Skill{Pillar: &model.Pillar{Prefixes: []string{"D1", "D1"}}}

			convey.Convey("Then both occurrences should be kept", func() {
				convey.So(skill.Prefixes(), convey.ShouldResemble, []string{"D1", "D1"})
			})
		})
	})
}
