package programs

const (
	// PrereqProgramName is the name of the enrollment program in Default.
	PrereqProgramName = "turbin3_prereq"

	// SystemProgramName is the name of the system program in Default.
	SystemProgramName = "system"

	// TokenMetadataProgramName is the name of the Metaplex token metadata
	// program in Default.
	TokenMetadataProgramName = "token_metadata"

	PrereqProgramID        = "TRBZyQHB3m68FGeVsqTK39Wm4xejadjVhP5MAZaKWDM"
	MplCoreProgramID       = "CoREENxT6tW1HoK8ypY1SxRMZTcVPm7R94rH4PZNhX7d"
	SystemProgramID        = "11111111111111111111111111111111"
	TokenMetadataProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
	SysvarRentID           = "SysvarRent111111111111111111111111111111111"
)

// Instruction names of the enrollment program.
const (
	InstructionInitialize = "initialize"
	InstructionSubmitRs   = "submit_rs"
	InstructionSubmitTs   = "submit_ts"
)

// Account role names shared by the enrollment program instructions.
const (
	RoleUser           = "user"
	RoleAccount        = "account"
	RoleMint           = "mint"
	RoleCollection     = "collection"
	RoleAuthority      = "authority"
	RoleMplCoreProgram = "mpl_core_program"
	RoleSystemProgram  = "system_program"
)

// Instruction and account role names of the token metadata program.
const (
	InstructionCreateMetadataV3 = "create_metadata_account_v3"

	RoleMetadata        = "metadata"
	RoleMintAuthority   = "mint_authority"
	RolePayer           = "payer"
	RoleUpdateAuthority = "update_authority"
	RoleRent            = "rent"
)

// Default returns the built in table: the enrollment program, the system
// program transfer and token metadata creation.
func Default() *Table {
	return &Table{
		Programs: []Interface{
			{
				Name:      PrereqProgramName,
				ProgramID: PrereqProgramID,
				Instructions: []InstructionDef{
					{
						Name: InstructionInitialize,
						Accounts: []AccountRole{
							{Name: RoleUser, Signer: true, Writable: true},
							enrollmentAccountRole(),
							{Name: RoleSystemProgram, Address: SystemProgramID},
						},
						Args: []ArgDef{
							{Name: "github", Type: ArgString},
						},
					},
					submitDef(InstructionSubmitRs, []byte{77, 124, 82, 163, 21, 133, 181, 206}),
					submitDef(InstructionSubmitTs, nil),
				},
			},
			{
				Name:      SystemProgramName,
				ProgramID: SystemProgramID,
				Instructions: []InstructionDef{
					{
						Name:          "transfer",
						Discriminator: []byte{2, 0, 0, 0},
						Accounts: []AccountRole{
							{Name: "from", Signer: true, Writable: true},
							{Name: "to", Writable: true},
						},
						Args: []ArgDef{
							{Name: "lamports", Type: ArgU64},
						},
					},
				},
			},
			{
				Name:      TokenMetadataProgramName,
				ProgramID: TokenMetadataProgramID,
				Instructions: []InstructionDef{
					{
						Name:          InstructionCreateMetadataV3,
						Discriminator: []byte{33},
						Accounts: []AccountRole{
							{
								Name:     RoleMetadata,
								Writable: true,
								Seeds:    []string{"literal:metadata", "address:" + TokenMetadataProgramID, "account:" + RoleMint},
							},
							{Name: RoleMint},
							{Name: RoleMintAuthority, Signer: true},
							{Name: RolePayer, Signer: true, Writable: true},
							{Name: RoleUpdateAuthority, Signer: true},
							{Name: RoleSystemProgram, Address: SystemProgramID},
							{Name: RoleRent, Address: SysvarRentID},
						},
						// DataV2, is_mutable, collection_details
						Args: []ArgDef{
							{Name: "name", Type: ArgString},
							{Name: "symbol", Type: ArgString},
							{Name: "uri", Type: ArgString},
							{Name: "seller_fee_basis_points", Type: ArgU16},
							{Name: "creators", Type: Option(ArgRaw)},
							{Name: "collection", Type: Option(ArgRaw)},
							{Name: "uses", Type: Option(ArgRaw)},
							{Name: "is_mutable", Type: ArgBool},
							{Name: "collection_details", Type: Option(ArgRaw)},
						},
					},
				},
			},
		},
	}
}

func enrollmentAccountRole() AccountRole {
	return AccountRole{
		Name:     RoleAccount,
		Writable: true,
		Seeds:    []string{"literal:prereqs", "account:" + RoleUser},
	}
}

func submitDef(name string, discriminator []byte) InstructionDef {
	return InstructionDef{
		Name:          name,
		Discriminator: discriminator,
		Accounts: []AccountRole{
			{Name: RoleUser, Signer: true, Writable: true},
			enrollmentAccountRole(),
			{Name: RoleMint, Signer: true, Writable: true},
			{Name: RoleCollection, Writable: true},
			{Name: RoleAuthority, Seeds: []string{"literal:collection", "account:" + RoleCollection}},
			{Name: RoleMplCoreProgram, Address: MplCoreProgramID},
			{Name: RoleSystemProgram, Address: SystemProgramID},
		},
	}
}
