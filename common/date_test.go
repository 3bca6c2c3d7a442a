package common_test

import (
	"time"
	"worklog/common"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Date", func() {
	Describe("Value", func() {
		It("should be able to calculate value correctly", func() {
			v, err := common.Date{}.Value()
			Expect(err).To(BeNil())
			Expect(v).To(BeNil())

			v, err = common.DateOf(2021, 5, 6).Value()
			Expect(err).To(BeNil())
			Expect(v).To(Equal("2021-05-06"))
		})
	})

	Describe("Scan", func() {
		It("should be able to scan value", func() {
			d := common.DateOf(2021, 1, 1)

			Expect(d.Scan(nil)).To(BeNil())
			Expect(d).To(Equal(common.Date{}))

			Expect(d.Scan("2021-05-06")).To(BeNil())
			Expect(d).To(Equal(common.DateOf(2021, 5, 6)))

			Expect(d.Scan([]byte("2021-05-06 00:00:00"))).To(BeNil())
			Expect(d).To(Equal(common.DateOf(2021, 5, 6)))

			Expect(d.Scan(time.Date(2021, 5, 6, 13, 30, 0, 0, time.Local))).To(BeNil())
			Expect(d).To(Equal(common.DateOf(2021, 5, 6)))

			Expect(d.Scan("0001-01-01")).To(BeNil())
			Expect(d.IsZero()).To(BeTrue())
		})
	})

	Describe("MarshalJSON and UnmarshalJSON", func() {
		It("should be able to marshal json", func() {
			d := common.DateOf(2021, 1, 1)
			jsonBytes, err := d.MarshalJSON()
			Expect(err).To(BeNil())
			Expect(string(jsonBytes)).To(Equal(`"2021-01-01"`))

			var d1 common.Date
			Expect(d1.UnmarshalJSON(jsonBytes)).To(BeNil())
			Expect(d1).To(Equal(d))

			jsonBytes, err = common.Date{}.MarshalJSON()
			Expect(err).To(BeNil())
			Expect(string(jsonBytes)).To(Equal(`null`))

			var d2 common.Date
			Expect(d2.UnmarshalJSON(jsonBytes)).To(BeNil())
			Expect(d2.IsZero()).To(BeTrue())
		})

		It("should reject malformed input", func() {
			var d common.Date
			Expect(d.UnmarshalJSON([]byte(`"2021-13-40"`))).ToNot(BeNil())
			Expect(d.UnmarshalJSON([]byte(`"06/05/2021"`))).ToNot(BeNil())
			Expect(d.UnmarshalJSON([]byte(`20210506`))).ToNot(BeNil())
		})
	})

	Describe("comparisons", func() {
		It("should compare dates by calendar day", func() {
			Expect(common.DateOf(2021, 5, 6).After(common.DateOf(2021, 5, 5))).To(BeTrue())
			Expect(common.DateOf(2021, 5, 6).Before(common.DateOf(2021, 5, 7))).To(BeTrue())
			Expect(common.DateOf(2021, 5, 6).After(common.DateOf(2021, 5, 6))).To(BeFalse())
			Expect(common.Today().After(common.Today())).To(BeFalse())
		})
	})
})
