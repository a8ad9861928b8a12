package forms

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// Meta is stamped on every accepted submission.
type Meta struct {
	ID          uuid.UUID `json:"id"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// NewMeta returns metadata for a submission accepted at now.
func NewMeta(now time.Time) Meta {
	return Meta{ID: uuid.New(), SubmittedAt: now.UTC()}
}

// Metadata returns m; it lets record types satisfy Record through embedding.
func (m Meta) Metadata() Meta { return m }

// Entry is one label/value line of a record, in display order.
type Entry struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Record is a typed, immutable submission.
type Record interface {
	Metadata() Meta
	Entries() []Entry
}

// Summary is the presentation view of one record.
type Summary struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submittedAt"`
	Entries     []Entry   `json:"entries"`
}

// Summarize converts a record to its Summary.
func Summarize(r Record) Summary {
	meta := r.Metadata()
	return Summary{ID: meta.ID.String(), SubmittedAt: meta.SubmittedAt, Entries: r.Entries()}
}

const notProvided = "Not provided"

// Registration is an accepted event registration.
type Registration struct {
	Meta
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	Age                float64 `json:"age"`
	AttendingWithGuest string  `json:"attendingWithGuest"`
	GuestName          string  `json:"guestName,omitempty"`
}

func (r Registration) Entries() []Entry {
	out := []Entry{
		{"Name", r.Name},
		{"Email", r.Email},
		{"Age", formatNumber(r.Age)},
		{"Attending With Guest", r.AttendingWithGuest},
	}
	if r.AttendingWithGuest == "yes" {
		out = append(out, Entry{"Guest Name", r.GuestName})
	}
	return out
}

// JobApplication is an accepted job application.
type JobApplication struct {
	Meta
	FullName               string    `json:"fullName"`
	Email                  string    `json:"email"`
	PhoneNumber            string    `json:"phoneNumber"`
	ApplyingForPosition    string    `json:"applyingForPosition"`
	RelevantExperience     *float64  `json:"relevantExperience,omitempty"`
	PortfolioURL           string    `json:"portfolioURL,omitempty"`
	ManagementExperience   string    `json:"managementExperience,omitempty"`
	AdditionalSkills       []string  `json:"additionalSkills"`
	PreferredInterviewTime time.Time `json:"preferredInterviewTime"`
}

func (r JobApplication) Entries() []Entry {
	experience := notProvided
	if r.RelevantExperience != nil {
		experience = formatNumber(*r.RelevantExperience)
	}
	return []Entry{
		{"Name", r.FullName},
		{"Email", r.Email},
		{"Phone Number", r.PhoneNumber},
		{"Applying for Position", r.ApplyingForPosition},
		{"Relevant Experience", experience},
		{"Portfolio URL", orNotProvided(r.PortfolioURL)},
		{"Management Experience", orNotProvided(r.ManagementExperience)},
		{"Additional Skills", strings.Join(r.AdditionalSkills, ", ")},
		{"Preferred Interview Time", r.PreferredInterviewTime.UTC().Format("2006-01-02 15:04 MST")},
	}
}

// Survey is an accepted survey response. Topic fields outside the selected
// topic are always empty.
type Survey struct {
	Meta
	FullName                    string   `json:"fullName"`
	Email                       string   `json:"email"`
	SurveyTopic                 string   `json:"surveyTopic"`
	FavoriteProgrammingLanguage string   `json:"favoriteProgrammingLanguage,omitempty"`
	YearsOfExperience           *float64 `json:"yearsOfExperience,omitempty"`
	ExerciseFrequency           string   `json:"exerciseFrequency,omitempty"`
	DietPreference              string   `json:"dietPreference,omitempty"`
	HighestQualification        string   `json:"highestQualification,omitempty"`
	FieldOfStudy                string   `json:"fieldOfStudy,omitempty"`
	Feedback                    string   `json:"feedback,omitempty"`
}

func (r Survey) Entries() []Entry {
	out := []Entry{
		{"Name", r.FullName},
		{"Email", r.Email},
		{"Survey Topic", r.SurveyTopic},
	}
	switch r.SurveyTopic {
	case "Technology":
		years := notProvided
		if r.YearsOfExperience != nil {
			years = formatNumber(*r.YearsOfExperience)
		}
		out = append(out,
			Entry{"Favorite Programming Language", r.FavoriteProgrammingLanguage},
			Entry{"Years of Experience", years},
		)
	case "Health":
		out = append(out,
			Entry{"Exercise Frequency", r.ExerciseFrequency},
			Entry{"Diet Preference", r.DietPreference},
		)
	case "Education":
		out = append(out,
			Entry{"Highest Qualification", r.HighestQualification},
			Entry{"Field of Study", r.FieldOfStudy},
		)
	}
	return append(out, Entry{"Feedback", r.Feedback})
}

// BuildRegistration maps normalized values to a Registration.
func BuildRegistration(meta Meta, values schema.Values) (Registration, error) {
	var b builder
	r := Registration{
		Meta:               meta,
		Name:               b.text(values, RegistrationName),
		Email:              b.text(values, RegistrationEmail),
		Age:                b.number(values, RegistrationAge),
		AttendingWithGuest: b.text(values, RegistrationAttendingWithGuest),
		GuestName:          b.text(values, RegistrationGuestName),
	}
	return r, b.err
}

// BuildJobApplication maps normalized values to a JobApplication.
func BuildJobApplication(meta Meta, values schema.Values) (JobApplication, error) {
	var b builder
	r := JobApplication{
		Meta:                   meta,
		FullName:               b.text(values, JobFullName),
		Email:                  b.text(values, JobEmail),
		PhoneNumber:            b.text(values, JobPhoneNumber),
		ApplyingForPosition:    b.text(values, JobApplyingForPosition),
		RelevantExperience:     b.optionalNumber(values, JobRelevantExperience),
		PortfolioURL:           b.text(values, JobPortfolioURL),
		ManagementExperience:   b.text(values, JobManagementExperience),
		AdditionalSkills:       b.set(values, JobAdditionalSkills),
		PreferredInterviewTime: b.time(values, JobPreferredInterviewTime),
	}
	return r, b.err
}

// BuildSurvey maps normalized values to a Survey.
func BuildSurvey(meta Meta, values schema.Values) (Survey, error) {
	var b builder
	r := Survey{
		Meta:                        meta,
		FullName:                    b.text(values, SurveyFullName),
		Email:                       b.text(values, SurveyEmail),
		SurveyTopic:                 b.text(values, SurveyTopic),
		FavoriteProgrammingLanguage: b.text(values, SurveyFavoriteProgrammingLanguage),
		YearsOfExperience:           b.optionalNumber(values, SurveyYearsOfExperience),
		ExerciseFrequency:           b.text(values, SurveyExerciseFrequency),
		DietPreference:              b.text(values, SurveyDietPreference),
		HighestQualification:        b.text(values, SurveyHighestQualification),
		FieldOfStudy:                b.text(values, SurveyFieldOfStudy),
		Feedback:                    b.text(values, SurveyFeedback),
	}
	return r, b.err
}

// builder reads typed values and keeps the first type mismatch.
type builder struct {
	err error
}

func (b *builder) fail(id schema.FieldID, want string, got any) {
	if b.err == nil {
		b.err = fmt.Errorf("forms: field %s: expected %s, got %T", id, want, got)
	}
}

func (b *builder) text(values schema.Values, id schema.FieldID) string {
	raw, ok := values.Get(id)
	if !ok || raw == nil {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		b.fail(id, "string", raw)
	}
	return s
}

func (b *builder) number(values schema.Values, id schema.FieldID) float64 {
	if n := b.optionalNumber(values, id); n != nil {
		return *n
	}
	return 0
}

func (b *builder) optionalNumber(values schema.Values, id schema.FieldID) *float64 {
	raw, ok := values.Get(id)
	if !ok || raw == nil {
		return nil
	}
	n, ok := raw.(float64)
	if !ok {
		b.fail(id, "float64", raw)
		return nil
	}
	return &n
}

func (b *builder) set(values schema.Values, id schema.FieldID) []string {
	raw, ok := values.Get(id)
	if !ok || raw == nil {
		return []string{}
	}
	items, ok := raw.([]string)
	if !ok {
		b.fail(id, "[]string", raw)
		return []string{}
	}
	return append([]string{}, items...)
}

func (b *builder) time(values schema.Values, id schema.FieldID) time.Time {
	raw, ok := values.Get(id)
	if !ok || raw == nil {
		return time.Time{}
	}
	t, ok := raw.(time.Time)
	if !ok {
		b.fail(id, "time.Time", raw)
	}
	return t.UTC()
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func orNotProvided(s string) string {
	if s == "" {
		return notProvided
	}
	return s
}
