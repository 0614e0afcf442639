package schoolapp

import (
	"strings"

	"schoolbridge-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// StudentInfo is the flat profile record rendered on the portal's
// landing page. Every field is best effort: a label missing from the
// data table yields "" rather than an error, the upstream markup is
// the only contract there is.
type StudentInfo struct {
	// pulled from the sidebar user panel, not the data table
	Name     string
	Code     string
	ImageURL string

	Program         string
	Level           string
	Status          string
	Section         string
	Group           string
	Subgroup        string
	MassarCode      string
	LastName        string
	FirstName       string
	LastNameArabic  string
	FirstNameArabic string
	NationalID      string
	Gender          string
	BirthDate       string
	BirthPlace      string
	Email           string
	Phone           string
	BacSeries       string
	BacYear         string
	EntryLevel      string
	EntryYear       string
	EntryTrack      string
	Nationality     string
	Academy         string
	FatherJob       string
	MotherJob       string
	ParentsAddress  string
	City            string
	ParentsPhone    string
}

// ExtractStudentInfo reads the profile off a landing page document.
// The main data table is a label/value listing; name, code and photo
// live in the sidebar panel instead, with the table's "Code" row as a
// fallback for the code.
func ExtractStudentInfo(html string) StudentInfo {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return StudentInfo{}
	}

	name := htmlutil.CleanText(doc.Find(".user-panel .info span.d-block").First().Text())
	imageUrl := doc.Find(".user-panel .image img").AttrOr("src", "")
	code := ""
	if imageUrl != "" {
		parts := strings.Split(imageUrl, "/")
		code = parts[len(parts)-1]
	}

	fields := htmlutil.KeyValueRows(doc.Find("table.table.table-striped.table-sm tbody tr"))
	if code == "" {
		code = fields["Code"]
	}

	return StudentInfo{
		Name:     name,
		Code:     code,
		ImageURL: imageUrl,

		Program:         fields["Filière"],
		Level:           fields["Niveau"],
		Status:          fields["Statut"],
		Section:         fields["Section"],
		Group:           fields["Groupe"],
		Subgroup:        fields["Sous Groupe"],
		MassarCode:      fields["CNE/Masar"],
		LastName:        fields["Nom"],
		FirstName:       fields["Prénom"],
		LastNameArabic:  fields["Nom Arabe"],
		FirstNameArabic: fields["Prénom Arabe"],
		NationalID:      fields["CIN"],
		Gender:          fields["Sexe"],
		BirthDate:       fields["Date Naissance"],
		BirthPlace:      fields["Lieu_Naissance"],
		Email:           fields["Email"],
		Phone:           fields["Téléphone"],
		BacSeries:       fields["Série BAC"],
		BacYear:         fields["Année BAC"],
		EntryLevel:      fields["Niveau Accès"],
		EntryYear:       fields["Annee Accès"],
		EntryTrack:      fields["Voie Accès"],
		Nationality:     fields["Nationalité"],
		Academy:         fields["Académie"],
		FatherJob:       fields["Prof_Père"],
		MotherJob:       fields["Prof_Mère"],
		ParentsAddress:  fields["Adr_Parents"],
		City:            fields["Ville"],
		ParentsPhone:    fields["Tel_Parents"],
	}
}
