package recordservice

import (
	"github.com/starford/codestash/internal/models"
	"github.com/starford/codestash/internal/symbology"
)

// SampleRecords returns fresh copies of the demo library.
func SampleRecords() []*models.Record {
	return []*models.Record{
		models.NewRecord("Qr Code", "13587936", symbology.QR),
		models.NewRecord("Code 128", "13587936", symbology.Code128),
		models.NewRecord("Code 39", "13587936", symbology.Code39),
		models.NewRecord("Code 39 Checksum", "13587936", symbology.Code39Checksum),
		models.NewRecord("QR URL", "https://google.com", symbology.QR),
		models.NewRecord("WIFI", "WIFI:S:some wifi name;T:WPA;P:and a password;H:false;;", symbology.QR),
	}
}
