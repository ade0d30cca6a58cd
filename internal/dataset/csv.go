package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// ReadCSV parses a survey table with an age,zipcode,medical_condition header.
// Columns may appear in any order; extra columns are ignored.
func ReadCSV(r io.Reader) ([]models.Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewValidationError(errors.CodeInvalidFormat, "CSV input is empty")
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidFormat, "failed to read CSV header")
	}

	columns, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var records []models.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidFormat,
				fmt.Sprintf("failed to read CSV line %d", line))
		}

		record, parseErr := parseRecord(row, columns)
		if parseErr != nil {
			return nil, parseErr.WithContext("line", line)
		}
		records = append(records, record)
	}

	return records, nil
}

// ValidateRecords checks every record against the survey ranges and reports
// the first offender with its zero-based index.
func ValidateRecords(records []models.Record) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			var appErr *errors.AppError
			if errors.As(err, &appErr) {
				return appErr.WithContext("index", i)
			}
			return err
		}
	}
	return nil
}

// WriteCSV writes records with the standard header.
func WriteCSV(w io.Writer, records []models.Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(models.Fields); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(r.Strings()); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadGeneralizedCSV parses a released table; every cell is kept as a string.
func ReadGeneralizedCSV(r io.Reader) ([]models.GeneralizedRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewValidationError(errors.CodeInvalidFormat, "CSV input is empty")
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidFormat, "failed to read CSV header")
	}

	columns, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var records []models.GeneralizedRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidFormat, "failed to read CSV row")
		}

		var record models.GeneralizedRecord
		for _, field := range models.Fields {
			_ = record.Set(field, row[columns[field]])
		}
		records = append(records, record)
	}

	return records, nil
}

func columnIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, field := range models.Fields {
		if _, ok := columns[field]; !ok {
			return nil, errors.NewValidationError(errors.CodeMissingField,
				fmt.Sprintf("CSV header is missing column %q", field))
		}
	}
	return columns, nil
}

func parseRecord(row []string, columns map[string]int) (models.Record, *errors.AppError) {
	age, err := strconv.Atoi(strings.TrimSpace(row[columns[models.FieldAge]]))
	if err != nil {
		return models.Record{}, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "age is not an integer")
	}

	zipcode, err := strconv.Atoi(strings.TrimSpace(row[columns[models.FieldZipcode]]))
	if err != nil {
		return models.Record{}, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "zipcode is not an integer")
	}

	return models.Record{
		Age:              age,
		Zipcode:          zipcode,
		MedicalCondition: strings.TrimSpace(row[columns[models.FieldMedicalCondition]]),
	}, nil
}
