package alpha_vantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	c "beta.service/api"
	ex "beta.service/data/extensions"
	m "beta.service/data/models"
)

// public
const (
	HostDefault = "www.alphavantage.co"
	SourceName  = "alphavantage"
)

// private
const (
	// default query parameters
	defaultOutputSize = "full"
	defaultDataType   = "json"
	defaultTimeout    = time.Second * 30

	// api request elements
	query    = "query"
	symbol   = "symbol"
	function = "function"

	// response elements
	metaDataKey     = "Meta Data"
	errorMessageKey = "Error Message"
	noteKey         = "Note"
	informationKey  = "Information"
)

var (
	timeSeriesDateFormats = []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
	}

	// <price bar attribute, json key suffix>
	priceBarResultKeys = map[string]string{
		"Open":          ". open",
		"High":          ". high",
		"Low":           ". low",
		"Close":         ". close",
		"AdjustedClose": ". adjusted close",
		"Volume":        ". volume",
	}
)

type AlphaVantageClient struct {
	*c.Client
}

func GetClient(apiKey string) AlphaVantageClient {
	return AlphaVantageClient{
		c.ClientFactory(HostDefault, apiKey, defaultTimeout),
	}
}

// GetClientForBaseURL is GetClient against a different host, used for proxies and tests
func GetClientForBaseURL(baseURL, apiKey string) (AlphaVantageClient, error) {
	client, err := c.ClientFactoryFromBaseURL(baseURL, apiKey, defaultTimeout)
	if err != nil {
		return AlphaVantageClient{}, err
	}
	return AlphaVantageClient{client}, nil
}

func (avc AlphaVantageClient) Name() string {
	return SourceName
}

// FetchSeries queries the adjusted time series for the interval and trims it to [start, end)
// https://www.alphavantage.co/documentation/#weeklyadj
func (avc AlphaVantageClient) FetchSeries(ctx context.Context, ticker string, start, end time.Time, interval m.Interval) (*m.PriceSeries, error) {
	if avc.Client == nil {
		panic("alpha vantage client has not been set.")
	}

	if err := c.ValidateRange(start, end); err != nil {
		return nil, err
	}

	timeSeries, err := TimeSeriesFor(interval)
	if err != nil {
		return nil, err
	}

	endpoint := avc.buildRequestPath(map[string]string{
		function: timeSeries.Function(),
		symbol:   ticker,
	})

	response, err := avc.Client.Connection.Request(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("error requesting %s for %s: %w", timeSeries.Function(), ticker, err)
	}

	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpha vantage returned status %d for %s", response.StatusCode, ticker)
	}

	raw, err := parseRawJson(response.Body)
	if err != nil {
		return nil, err
	}

	if err := checkApiError(raw, ticker); err != nil {
		return nil, err
	}

	_, timeZone, err := parseMetaData(raw)
	if err != nil {
		return nil, err
	}

	bars, err := parseTimeSeriesDataResult(raw, timeSeries.TimeSeriesKey(), timeZone)
	if err != nil {
		return nil, err
	}

	// av only serves the full history, the range is applied here
	inRange := ex.FilterMultiple(bars, func(b m.PriceBar) bool { return c.InRange(b.Timestamp, start, end) })

	log.Debug().
		Str("source", SourceName).
		Str("symbol", ticker).
		Int("received", len(bars)).
		Int("in_range", len(inRange)).
		Msg("parsed alpha vantage time series")

	return c.NewPriceSeries(SourceName, ticker, interval, inRange)
}

func (avc AlphaVantageClient) buildRequestPath(params map[string]string) *url.URL {
	// build our URL
	endpoint := &url.URL{}
	endpoint.Path = query

	// base parameters
	query := endpoint.Query()
	query.Set("apikey", avc.Client.ApiKey)
	query.Set("datatype", defaultDataType)
	query.Set("outputsize", defaultOutputSize)

	// additional parameters
	for key, value := range params {
		query.Set(key, value)
	}

	endpoint.RawQuery = query.Encode()

	return endpoint
}

func parseRawJson(reader io.Reader) (raw map[string]json.RawMessage, err error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	// converting to a <string, raw message> map
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	return
}

// checkApiError maps the error payloads av sends back with a 200
func checkApiError(raw map[string]json.RawMessage, ticker string) error {
	if msg, ok := raw[errorMessageKey]; ok {
		var text string
		_ = json.Unmarshal(msg, &text)
		return fmt.Errorf("alpha vantage has no data for %s (%s): %w", ticker, text, c.ErrSymbolNotFound)
	}

	if _, ok := raw[metaDataKey]; ok {
		return nil
	}

	// rate limiting and premium endpoint notices come back without meta data
	for _, key := range []string{noteKey, informationKey} {
		if msg, ok := raw[key]; ok {
			var text string
			_ = json.Unmarshal(msg, &text)
			return fmt.Errorf("alpha vantage refused request for %s: %s", ticker, text)
		}
	}

	return fmt.Errorf("alpha vantage response for %s has no meta data", ticker)
}

func parseMetaData(raw map[string]json.RawMessage) (*m.PriceSeriesMetadata, *time.Location, error) {
	var metadataElements map[string]string
	if err := json.Unmarshal(raw[metaDataKey], &metadataElements); err != nil {
		return nil, nil, fmt.Errorf("error unmarshaling meta data: %w", err)
	}

	metaDataKeys := slices.Collect(maps.Keys(metadataElements))

	// parse symbol
	sf := func(s string) bool { return strings.HasSuffix(s, ". Symbol") }
	symbolKey, err := ex.FilterSingle(metaDataKeys, sf)
	if err != nil {
		return nil, nil, fmt.Errorf("error extracting symbol for meta data")
	}

	// parse time zone
	tzf := func(s string) bool { return strings.HasSuffix(s, ". Time Zone") }
	timeZoneKey, err := ex.FilterSingle(metaDataKeys, tzf)
	if err != nil {
		return nil, nil, fmt.Errorf("error extracting time zone for meta data")
	}

	timeZone, err := getTimeZone(metadataElements[timeZoneKey])
	if err != nil {
		return nil, nil, fmt.Errorf("error converting time zone key %s, to time.Location: %w", metadataElements[timeZoneKey], err)
	}

	// parse last refreshed
	lrf := func(s string) bool { return strings.HasSuffix(s, ". Last Refreshed") }
	lastRefreshedKey, err := ex.FilterSingle(metaDataKeys, lrf)
	if err != nil {
		return nil, nil, fmt.Errorf("error extracting last refreshed date")
	}

	lastRefreshed, err := parseDate(metadataElements[lastRefreshedKey], timeZone)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing last refreshed date")
	}

	res := m.PriceSeriesMetadata{
		Provider:      SourceName,
		Symbol:        metadataElements[symbolKey],
		LastRefreshed: lastRefreshed,
	}

	return &res, timeZone, nil
}

func parseTimeSeriesDataResult(raw map[string]json.RawMessage, key string, location *time.Location) ([]m.PriceBar, error) {
	rawSeries, ok := raw[key]
	if !ok {
		return nil, fmt.Errorf("response is missing %q", key)
	}

	var timeSeriesElements map[string]map[string]string
	if err := json.Unmarshal(rawSeries, &timeSeriesElements); err != nil {
		return nil, fmt.Errorf("error unmarshaling time series: %w", err)
	}

	if len(timeSeriesElements) == 0 {
		return []m.PriceBar{}, nil
	}

	// populate the lookup from any element, av uses the same headers for all of them
	var firstValue map[string]string
	for _, v := range timeSeriesElements {
		firstValue = v
		break
	}

	lookup, err := getLookupKey(priceBarResultKeys, firstValue)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(slices.Collect(maps.Values(lookup)), "AdjustedClose") {
		return nil, fmt.Errorf("error extracting adjusted close key for time series %s", key)
	}

	bars := make([]m.PriceBar, 0, len(timeSeriesElements))
	for timeSeriesKey, timeSeriesValue := range timeSeriesElements {
		// get timestamp
		timestamp, err := parseDate(timeSeriesKey, location)
		if err != nil {
			return nil, fmt.Errorf("error converting TIMESTAMP from string to time.Time: %w", err)
		}

		bar, err := parsePriceBar(timeSeriesValue, lookup)
		if err != nil {
			return nil, fmt.Errorf("error parsing price bar: %w", err)
		}
		bar.Timestamp = ex.DateOnly(timestamp)

		bars = append(bars, bar)
	}

	return bars, nil
}

func parsePriceBar(value, lookup map[string]string) (res m.PriceBar, err error) {
	v := reflect.ValueOf(&res).Elem()
	for jsonKey, structAttribute := range lookup {
		field := v.FieldByName(structAttribute)
		if !field.IsValid() {
			return res, fmt.Errorf("field %s does not exist", structAttribute)
		}
		if !field.CanSet() {
			return res, fmt.Errorf("field %s cannot be set", structAttribute)
		}

		pv := parseFloat(value[jsonKey])
		field.Set(reflect.ValueOf(pv))
	}
	return
}

// getLookupKey returns <json key, price bar attribute> for every expected suffix found in the headers
func getLookupKey(expectedKeys, values map[string]string) (map[string]string, error) {
	res := make(map[string]string)
	responseValueHeaders := slices.Collect(maps.Keys(values))

	for key, value := range expectedKeys {
		f := func(s string) bool { return ex.HasSuffixFold(s, value) }
		if jsonKey, err := ex.FilterSingle(responseValueHeaders, f); err == nil {
			res[jsonKey] = key
		}
	}

	if len(res) == 0 {
		return nil, fmt.Errorf("error generating key value map from av response object. Available headers: %v", responseValueHeaders)
	}

	return res, nil
}

func getTimeZone(location string) (*time.Location, error) {
	var loc string
	switch strings.ToUpper(location) {
	case "US/EASTERN":
		loc = "America/New_York"
	default:
		log.Debug().Str("time_zone", location).Msg("default time zone hit, using utc")
		return time.UTC, nil
	}

	res, err := time.LoadLocation(loc)

	if err != nil {
		return nil, fmt.Errorf("error parsing time zone %s in time.LoadLocation", loc)
	}

	return res, nil
}

func parseDate(dateString string, location *time.Location) (time.Time, error) {
	for _, format := range timeSeriesDateFormats {
		t, err := time.ParseInLocation(format, dateString, location)
		if err != nil {
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("error converting date %s to time.Time", dateString)
}

func parseFloat(val string) float64 {
	if val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return 0
}
